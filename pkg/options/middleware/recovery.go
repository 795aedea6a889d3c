package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

var _ Config = (*RecoveryOptions)(nil)

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	// EnableStackTrace 是否在日志中记录堆栈。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery middleware options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{EnableStackTrace: true}
}

// AddFlags adds flags for recovery options to the specified FlagSet.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"enable-stack-trace", o.EnableStackTrace, "Log the stack trace of recovered panics.")
}

// Complete completes the recovery options with defaults.
func (o *RecoveryOptions) Complete() error {
	return nil
}

// Validate validates the recovery options.
func (o *RecoveryOptions) Validate() []error {
	return nil
}
