package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

// Options aggregates the options of every HTTP middleware.
type Options struct {
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	BodyLimit *BodyLimitOptions `json:"body-limit" mapstructure:"body-limit"`
	// Metrics 由上层以独立的 metrics 配置段注入。
	Metrics *MetricsOptions `json:"-" mapstructure:"-"`
}

// NewOptions creates middleware options with defaults.
func NewOptions() *Options {
	return &Options{
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
		BodyLimit: NewBodyLimitOptions(),
		Metrics:   NewMetricsOptions(),
	}
}

func (o *Options) configs() map[string]Config {
	return map[string]Config{
		"recovery":   o.Recovery,
		"request-id": o.RequestID,
		"logger":     o.Logger,
		"body-limit": o.BodyLimit,
	}
}

// AddFlags 添加所有中间件的命令行标志，形如 --middleware.body-limit.max-size。
// metrics 不带 middleware 前缀，由上层以 --metrics.* 注册。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	for name, c := range o.configs() {
		c.AddFlags(fs, p+name)
	}
}

// Validate validates every middleware option set.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, c := range o.configs() {
		errs = append(errs, c.Validate()...)
	}
	errs = append(errs, o.Metrics.Validate()...)
	return errs
}

// Complete fills in defaults of every middleware option set.
func (o *Options) Complete() error {
	for _, c := range o.configs() {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	if o.Metrics == nil {
		return nil
	}
	return o.Metrics.Complete()
}

var _ options.IOptions = (*Options)(nil)
