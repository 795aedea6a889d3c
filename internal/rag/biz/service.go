package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/rag-ask/internal/rag/metrics"
	"github.com/kart-io/rag-ask/internal/rag/store"
	"github.com/kart-io/rag-ask/pkg/infra/tracing"
	"github.com/kart-io/rag-ask/pkg/llm"
)

// previewRunes 调试日志中上下文预览的长度。
const previewRunes = 300

var (
	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrKnowledgeIndex 包装知识库检索阶段的失败。
	ErrKnowledgeIndex = errors.New("failed to search knowledge base")

	// ErrGeneration 包装生成阶段的失败；只有该链上的上游状态码会透传给客户端。
	ErrGeneration = errors.New("failed to generate answer")
)

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// TopK 检索返回的段落数，只使用第一条。
	TopK int
	// FallbackAnswer 知识库为空时的回复。
	FallbackAnswer string
}

// AskResult 是一次问答的结果。只有 Answer 会返回给客户端。
type AskResult struct {
	Answer   string
	Position int
	Distance float32
	// Fallback 为 true 表示未检索到任何段落，未调用模型。
	Fallback bool
}

// Service 组合索引、嵌入模型与生成器。构建一次后在所有请求间共享。
type Service struct {
	index     store.Index
	embedder  llm.EmbeddingProvider
	generator *Generator
	config    *ServiceConfig
	metrics   *metrics.RAGMetrics
}

// NewService 创建问答服务。index 应当已经封存。
func NewService(
	index store.Index,
	embedder llm.EmbeddingProvider,
	generator *Generator,
	m *metrics.RAGMetrics,
	config *ServiceConfig,
) (*Service, error) {
	if index == nil || embedder == nil || generator == nil {
		return nil, fmt.Errorf("index, embedder and generator are required")
	}
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.TopK <= 0 {
		config.TopK = 1
	}

	m.SetDocuments(index.Len())

	return &Service{
		index:     index,
		embedder:  embedder,
		generator: generator,
		config:    config,
		metrics:   m,
	}, nil
}

// Index 返回知识库索引。
func (s *Service) Index() store.Index {
	return s.index
}

// Ask answers question from the nearest passage of the knowledge base.
func (s *Service) Ask(ctx context.Context, question string) (result *AskResult, err error) {
	start := time.Now()
	defer func() {
		switch {
		case err != nil:
			s.metrics.RecordQuery(metrics.ResultError, time.Since(start))
		case result.Fallback:
			s.metrics.RecordQuery(metrics.ResultFallback, time.Since(start))
		default:
			s.metrics.RecordQuery(metrics.ResultOK, time.Since(start))
		}
	}()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	// 1. 检索
	retrievalStart := time.Now()
	matches, err := s.retrieve(ctx, question)
	s.metrics.RecordRetrieval(time.Since(retrievalStart))
	if err != nil {
		return nil, err
	}

	// 2. 没有段落时直接返回兜底回复
	if len(matches) == 0 {
		logger.Debugw("No passage retrieved, returning fallback answer")
		return &AskResult{Answer: s.config.FallbackAnswer, Position: -1, Fallback: true}, nil
	}

	best := matches[0]
	logger.Debugw("Retrieved context",
		"position", best.Position,
		"distance", best.Distance,
		"preview", preview(best.Text, previewRunes),
	)

	// 3. 生成
	answer, err := s.generator.Generate(ctx, best.Text, question)
	if err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:   answer,
		Position: best.Position,
		Distance: best.Distance,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, question string) ([]store.Match, error) {
	embedCtx, span := tracing.StartSpan(ctx, "rag.embed")
	vec, err := s.embedder.EmbedSingle(embedCtx, question)
	if err != nil {
		tracing.RecordError(embedCtx, err)
		span.End()
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	span.End()

	searchCtx, span := tracing.StartSpan(ctx, "rag.search",
		attribute.Int("rag.top_k", s.config.TopK),
		attribute.Int("rag.index_size", s.index.Len()),
	)
	defer span.End()

	matches, err := s.index.Search(searchCtx, vec, s.config.TopK)
	if err != nil {
		tracing.RecordError(searchCtx, err)
		return nil, fmt.Errorf("%w: %w", ErrKnowledgeIndex, err)
	}
	return matches, nil
}

// preview 返回 s 的前 n 个字符。
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
