package middleware

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

var _ Config = (*MetricsOptions)(nil)

// MetricsOptions defines the Prometheus endpoint options.
type MetricsOptions struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// NewMetricsOptions creates default metrics options.
func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		Enabled: true,
		Path:    "/metrics",
	}
}

// AddFlags adds flags for metrics options to the specified FlagSet.
func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Expose Prometheus metrics.")
	fs.StringVar(&o.Path, p+"path", o.Path, "Metrics endpoint path.")
}

// Validate validates the metrics options.
func (o *MetricsOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	if !strings.HasPrefix(o.Path, "/") {
		return []error{errors.New("metrics path must start with '/'")}
	}
	return nil
}

// Complete completes the metrics options with defaults.
func (o *MetricsOptions) Complete() error {
	if o.Path == "" {
		o.Path = "/metrics"
	}
	return nil
}
