package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rag-ask/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 工作池配置。
type Options struct {
	// Capacity 最大并发 goroutine 数。
	Capacity int `json:"capacity" mapstructure:"capacity"`
	// ExpiryDuration 空闲 goroutine 回收时间。
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	// PreAlloc 是否预分配 worker 队列。
	PreAlloc bool `json:"pre-alloc" mapstructure:"pre-alloc"`
}

// NewOptions creates default pool options.
func NewOptions() *Options {
	def := DefaultPoolConfig()
	return &Options{
		Capacity:       def.Capacity,
		ExpiryDuration: def.ExpiryDuration,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Maximum concurrent workers.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.PreAlloc, p+"pre-alloc", o.PreAlloc, "Pre-allocate the worker queue.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must be positive"))
	}
	if o.ExpiryDuration < 0 {
		errs = append(errs, fmt.Errorf("pool.expiry-duration must not be negative"))
	}
	return errs
}

// ToConfig 转换为 Config。提交会阻塞直到有空闲 worker。
func (o *Options) ToConfig() *Config {
	return &Config{
		Capacity:       o.Capacity,
		ExpiryDuration: o.ExpiryDuration,
		PreAlloc:       o.PreAlloc,
	}
}
