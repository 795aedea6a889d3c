package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
	"github.com/kart-io/rag-ask/pkg/utils/id"
)

// 确保 RequestIDOptions 实现 Config 接口。
var _ Config = (*RequestIDOptions)(nil)

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
	// GeneratorType 指定 ID 生成器类型
	// 支持的值:
	//   - "random" 或 "hex": 加密随机十六进制(默认,32字符)
	//   - "ulid": 时间可排序(26字符)
	//   - "uuid": 随机 v4 UUID(36字符)
	GeneratorType string `json:"generator" mapstructure:"generator"`
}

// NewRequestIDOptions creates default request ID middleware options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{
		Header:        "X-Request-ID",
		GeneratorType: string(id.TypeHex),
	}
}

// AddFlags adds flags for request ID options to the specified FlagSet.
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Header, p+"header", o.Header, "Request ID header name.")
	fs.StringVar(&o.GeneratorType, p+"generator", o.GeneratorType, "ID generator type: hex (default), ulid or uuid.")
}

// Validate validates the request ID options.
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Header == "" {
		errs = append(errs, errors.New("request ID header name is required"))
	}
	if !id.Valid(o.GeneratorType) {
		errs = append(errs, errors.New("invalid generator type: must be 'hex', 'ulid' or 'uuid'"))
	}
	return errs
}

// Complete completes the request ID options with defaults.
func (o *RequestIDOptions) Complete() error {
	if o.Header == "" {
		o.Header = "X-Request-ID"
	}
	return nil
}
