// Package ragsvc wires the question answering service: providers, knowledge
// base, HTTP server and observability.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/internal/rag/biz"
	"github.com/kart-io/rag-ask/internal/rag/handler"
	"github.com/kart-io/rag-ask/internal/rag/metrics"
	"github.com/kart-io/rag-ask/internal/rag/router"
	"github.com/kart-io/rag-ask/internal/rag/store"
	"github.com/kart-io/rag-ask/pkg/component/milvus"
	"github.com/kart-io/rag-ask/pkg/infra/app"
	"github.com/kart-io/rag-ask/pkg/infra/pool"
	"github.com/kart-io/rag-ask/pkg/infra/server"
	"github.com/kart-io/rag-ask/pkg/infra/tracing"
	"github.com/kart-io/rag-ask/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/rag-ask/pkg/llm/hashing"
	_ "github.com/kart-io/rag-ask/pkg/llm/huggingface"
	llmopts "github.com/kart-io/rag-ask/pkg/options/llm"
	logopts "github.com/kart-io/rag-ask/pkg/options/logger"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	milvusopts "github.com/kart-io/rag-ask/pkg/options/milvus"
	ragopts "github.com/kart-io/rag-ask/pkg/options/rag"
	httpopts "github.com/kart-io/rag-ask/pkg/options/server/http"
)

// Name is the name of the application.
const Name = "rag-ask"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MilvusOptions     *milvusopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	RAGOptions        *ragopts.Options
	PoolOptions       *pool.Options
	TracingOptions    *tracing.Options
	MiddlewareOptions *mwopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the question answering server.
type Server struct {
	srv     *server.Manager
	service *biz.Service
	index   store.Index
	tracer  *tracing.Provider
}

// NewServer initializes and returns a new Server instance.
// The knowledge base is embedded here; any failure aborts startup.
func (cfg *Config) NewServer(ctx context.Context) (s *Server, err error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting RAG service...")

	// 2. 初始化链路追踪
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tracer.Shutdown(context.Background())
		}
	}()
	logger.Infow("Tracing initialized", "enabled", tracer.Enabled())

	// 3. 初始化指标
	ragMetrics := metrics.New()

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化索引后端
	factory, err := cfg.indexFactory(ctx)
	if err != nil {
		return nil, err
	}

	// 6. 构建知识库
	index, err := cfg.buildKnowledgeBase(ctx, embedProvider, factory)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = index.Close(context.Background())
		}
	}()

	// 7. 初始化 Biz 层
	generator := biz.NewGenerator(chatProvider, &biz.GeneratorConfig{
		PromptTemplate: cfg.RAGOptions.PromptTemplate,
		FallbackAnswer: cfg.RAGOptions.FallbackAnswer,
	}, ragMetrics)

	service, err := biz.NewService(index, embedProvider, generator, ragMetrics, &biz.ServiceConfig{
		TopK:           cfg.RAGOptions.TopK,
		FallbackAnswer: cfg.RAGOptions.FallbackAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	logger.Infow("RAG service initialized",
		"documents", index.Len(),
		"dimension", index.Dimension(),
		"top_k", cfg.RAGOptions.TopK,
		"index_backend", cfg.RAGOptions.IndexBackend,
	)

	// 8. 初始化 Handler 层
	ragHandler := handler.NewRAGHandler(service, cfg.RAGOptions.BannerMessage)

	// 9. 初始化服务器
	serverManager := server.NewManager(
		server.WithHTTPOptions(cfg.HTTPOptions),
		server.WithMiddleware(cfg.MiddlewareOptions),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)

	// 10. 注册路由
	router.Register(serverManager.HTTPServer().Engine(), ragHandler, ragMetrics.Handler(), cfg.MiddlewareOptions.Metrics)

	printBanner(cfg, index)
	logger.Info("RAG service is ready")

	return &Server{
		srv:     serverManager,
		service: service,
		index:   index,
		tracer:  tracer,
	}, nil
}

func (cfg *Config) indexFactory(ctx context.Context) (store.Factory, error) {
	if cfg.RAGOptions.IndexBackend != ragopts.BackendMilvus {
		return store.FlatFactory, nil
	}

	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address)

	newMilvus := store.MilvusFactory(client, cfg.RAGOptions.Collection)
	return func(ctx context.Context, dimension int) (store.Index, error) {
		idx, err := newMilvus(ctx, dimension)
		if err != nil {
			_ = client.Close(context.Background())
			return nil, err
		}
		// 集合仅在本进程生命周期内有效
		idx.(*store.MilvusIndex).DropOnClose(true)
		return idx, nil
	}, nil
}

func (cfg *Config) buildKnowledgeBase(ctx context.Context, embedder llm.EmbeddingProvider, factory store.Factory) (store.Index, error) {
	embedPool, err := pool.NewPool("knowledge-embed", cfg.PoolOptions.ToConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer embedPool.Release()

	index, err := biz.BuildKnowledgeBase(ctx, embedder, factory, cfg.RAGOptions.Documents, &biz.KnowledgeConfig{
		BatchSize: cfg.RAGOptions.EmbedBatchSize,
		Dimension: cfg.EmbeddingOptions.Dimension,
		Pool:      embedPool,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base: %w", err)
	}
	return index, nil
}

// Service returns the question answering service.
func (s *Server) Service() *biz.Service {
	return s.service
}

// Run starts the server and blocks until ctx is cancelled or a termination
// signal arrives.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()
	return s.srv.Run(ctx)
}

func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.index.Close(ctx); err != nil {
		logger.Warnw("Failed to close knowledge index", "error", err)
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		logger.Warnw("Failed to shutdown tracer provider", "error", err)
	}
	_ = logger.Flush()
}

func printBanner(cfg *Config, index store.Index) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	key := color.New(color.FgGreen).SprintFunc()

	fmt.Printf("%s %s\n", title(Name), app.GetVersion())
	fmt.Printf("  %s %s\n", key("Listen:   "), cfg.HTTPOptions.Addr)
	fmt.Printf("  %s %s (%s)\n", key("Embedding:"), cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  %s %s (%s)\n", key("Chat:     "), cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  %s %d passages, dim %d, %s\n", key("Knowledge:"), index.Len(), index.Dimension(), cfg.RAGOptions.IndexBackend)
	fmt.Printf("  %s %s\n", key("Banner:   "), cfg.RAGOptions.BannerMessage)
}
