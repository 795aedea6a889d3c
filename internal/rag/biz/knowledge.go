package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/internal/rag/store"
	"github.com/kart-io/rag-ask/pkg/infra/pool"
	"github.com/kart-io/rag-ask/pkg/llm"
)

// KnowledgeConfig 知识库构建配置。
type KnowledgeConfig struct {
	// BatchSize 每批嵌入的文档数。
	BatchSize int
	// Dimension 文档为空时使用的索引维度。
	Dimension int
	// Pool 并发嵌入使用的工作池，为 nil 时顺序执行。
	Pool *pool.Pool
}

// BuildKnowledgeBase embeds documents and returns a sealed index holding
// them in document order. Entry i of the index is documents[i].
func BuildKnowledgeBase(
	ctx context.Context,
	embedder llm.EmbeddingProvider,
	factory store.Factory,
	documents []string,
	cfg *KnowledgeConfig,
) (store.Index, error) {
	if cfg == nil {
		cfg = &KnowledgeConfig{}
	}

	if len(documents) == 0 {
		logger.Warnw("Knowledge base is empty, every question will get the fallback answer",
			"dimension", cfg.Dimension,
		)
		idx := store.NewFlatIndex(cfg.Dimension)
		idx.Seal()
		return idx, nil
	}

	start := time.Now()
	vectors, err := embedDocuments(ctx, embedder, documents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed knowledge base: %w", err)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("document %d has %d dimensions, expected %d: %w", i, len(v), dim, store.ErrDimensionMismatch)
		}
	}
	if cfg.Dimension > 0 && cfg.Dimension != dim {
		logger.Warnw("Embedding dimension differs from configuration, using the provider's",
			"configured", cfg.Dimension,
			"actual", dim,
		)
	}

	idx, err := factory(ctx, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	entries := make([]store.Entry, len(documents))
	for i, doc := range documents {
		entries[i] = store.Entry{Text: doc, Vector: vectors[i]}
	}
	if err := idx.Add(ctx, entries...); err != nil {
		_ = idx.Close(ctx)
		return nil, fmt.Errorf("failed to add documents to index: %w", err)
	}
	idx.Seal()

	logger.Infow("Knowledge base ready",
		"documents", idx.Len(),
		"dimension", dim,
		"provider", embedder.Name(),
		"duration", time.Since(start).String(),
	)
	return idx, nil
}

// embedDocuments 分批嵌入文档，结果按原始顺序返回。
func embedDocuments(ctx context.Context, embedder llm.EmbeddingProvider, documents []string, cfg *KnowledgeConfig) ([][]float32, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(documents)
	}

	vectors := make([][]float32, len(documents))
	tasks := make([]func(context.Context) error, 0, (len(documents)+batchSize-1)/batchSize)
	for lo := 0; lo < len(documents); lo += batchSize {
		hi := min(lo+batchSize, len(documents))
		tasks = append(tasks, func(ctx context.Context) error {
			out, err := embedder.Embed(ctx, documents[lo:hi])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", lo, hi, err)
			}
			if len(out) != hi-lo {
				return fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", lo, hi, hi-lo, len(out))
			}
			// 每个批次只写自己的区间，无需加锁
			copy(vectors[lo:hi], out)
			return nil
		})
	}

	if cfg.Pool == nil {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return nil, err
			}
		}
		return vectors, nil
	}

	if err := cfg.Pool.Go(ctx, tasks...); err != nil {
		return nil, err
	}
	return vectors, nil
}
