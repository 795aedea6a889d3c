package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

// 确保 LoggerOptions 实现 Config 接口。
var _ Config = (*LoggerOptions)(nil)

// LoggerOptions defines access log middleware options.
type LoggerOptions struct {
	// SkipPaths 不记录访问日志的路径。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default logger middleware options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/metrics"},
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"skip-paths", o.SkipPaths, "Paths to skip in the access log.")
}

// Validate validates the logger options.
func (o *LoggerOptions) Validate() []error {
	return nil
}

// Complete completes the logger options with defaults.
func (o *LoggerOptions) Complete() error {
	return nil
}
