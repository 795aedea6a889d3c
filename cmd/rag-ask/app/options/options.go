// Package options contains flags and options for initializing the rag-ask server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/rag-ask/internal/rag"
	"github.com/kart-io/rag-ask/pkg/infra/app"
	"github.com/kart-io/rag-ask/pkg/infra/pool"
	"github.com/kart-io/rag-ask/pkg/infra/server"
	"github.com/kart-io/rag-ask/pkg/infra/tracing"
	llmopts "github.com/kart-io/rag-ask/pkg/options/llm"
	logopts "github.com/kart-io/rag-ask/pkg/options/logger"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	milvusopts "github.com/kart-io/rag-ask/pkg/options/milvus"
	ragopts "github.com/kart-io/rag-ask/pkg/options/rag"
	httpopts "github.com/kart-io/rag-ask/pkg/options/server/http"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains the knowledge base and prompt configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// MilvusOptions is only used by the milvus index backend.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// PoolOptions sizes the startup embedding worker pool.
	PoolOptions *pool.Options `json:"pool" mapstructure:"pool"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracing.Options `json:"tracing" mapstructure:"tracing"`

	// MiddlewareOptions contains the HTTP middleware configuration.
	MiddlewareOptions *mwopts.Options `json:"middleware" mapstructure:"middleware"`

	// MetricsOptions configures the /metrics endpoint.
	MetricsOptions *mwopts.MetricsOptions `json:"metrics" mapstructure:"metrics"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	mw := mwopts.NewOptions()
	srv := server.NewOptions()

	return &ServerOptions{
		HTTPOptions:       srv.HTTP,
		LogOptions:        logopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		RAGOptions:        ragopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		PoolOptions:       pool.NewOptions(),
		TracingOptions:    tracing.NewOptions(),
		MiddlewareOptions: mw,
		MetricsOptions:    mw.Metrics,
		ShutdownTimeout:   srv.ShutdownTimeout,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"), "http")
	o.LogOptions.AddFlags(fss.FlagSet("log"), "log")
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"), "rag")
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"), "milvus")
	o.PoolOptions.AddFlags(fss.FlagSet("pool"), "pool")
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"), "tracing")
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"), "middleware")
	o.MetricsOptions.AddFlags(fss.FlagSet("metrics"), "metrics")

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	// metrics 在顶层配置，挂回中间件选项
	o.MiddlewareOptions.Metrics = o.MetricsOptions

	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.serverOptions().Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.RAGOptions.IndexBackend == ragopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MilvusOptions:     o.MilvusOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		RAGOptions:        o.RAGOptions,
		PoolOptions:       o.PoolOptions,
		TracingOptions:    o.TracingOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}

func (o *ServerOptions) serverOptions() *server.Options {
	return &server.Options{
		HTTP:            o.HTTPOptions,
		Middleware:      o.MiddlewareOptions,
		ShutdownTimeout: o.ShutdownTimeout,
	}
}
