package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

// 确保 BodyLimitOptions 实现 Config 接口。
var _ Config = (*BodyLimitOptions)(nil)

// BodyLimitOptions 定义请求体大小限制中间件的配置选项。
type BodyLimitOptions struct {
	// MaxSize 最大请求体大小（字节），默认 1MB。
	MaxSize int64 `json:"max-size" mapstructure:"max-size"`

	// SkipPaths 跳过检查的精确路径列表。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewBodyLimitOptions 创建默认的 BodyLimit 中间件配置。
func NewBodyLimitOptions() *BodyLimitOptions {
	return &BodyLimitOptions{
		MaxSize:   1 << 20,
		SkipPaths: []string{},
	}
}

// AddFlags 添加 BodyLimit 配置的命令行标志。
func (o *BodyLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.Int64Var(&o.MaxSize, p+"max-size", o.MaxSize, "Maximum request body size in bytes.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Skip paths for body limit middleware.")
}

// Validate 验证 BodyLimit 配置的有效性。
func (o *BodyLimitOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.MaxSize <= 0 {
		return []error{errors.New("body-limit: max-size must be greater than 0")}
	}
	return nil
}

// Complete 完成 BodyLimit 配置的默认值填充。
func (o *BodyLimitOptions) Complete() error {
	return nil
}
