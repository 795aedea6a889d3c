package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rag-ask/internal/rag/metrics"
	"github.com/kart-io/rag-ask/internal/rag/store"
	"github.com/kart-io/rag-ask/pkg/infra/pool"
	"github.com/kart-io/rag-ask/pkg/llm"
	"github.com/kart-io/rag-ask/pkg/llm/hashing"
	"github.com/kart-io/rag-ask/pkg/utils/httpclient"
)

// fakeEmbedder maps known texts to fixed vectors; unknown texts embed to zero.
type fakeEmbedder struct {
	vectors map[string][]float32
	dim     int
	err     error
	calls   atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.EmbedSingle(ctx, t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

// fakeChat records prompts and answers with a fixed response.
type fakeChat struct {
	content string
	usage   *llm.TokenUsage
	err     error
	calls   atomic.Int32
	prompts []string
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	f.calls.Add(1)
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Content: f.content, TokenUsage: f.usage}, nil
}

func (f *fakeChat) Generate(ctx context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

const testTemplate = "Context: {{context}}\nQuestion: {{question}}\nIf unsure say {{fallback}}."

func newTestService(t *testing.T, docs []string, embedder llm.EmbeddingProvider, chat llm.ChatProvider) (*Service, *metrics.RAGMetrics) {
	t.Helper()
	ctx := context.Background()

	idx, err := BuildKnowledgeBase(ctx, embedder, store.FlatFactory, docs, &KnowledgeConfig{BatchSize: 2, Dimension: 2})
	require.NoError(t, err)

	m := metrics.New()
	gen := NewGenerator(chat, &GeneratorConfig{PromptTemplate: testTemplate, FallbackAnswer: "I don't know"}, m)
	svc, err := NewService(idx, embedder, gen, m, &ServiceConfig{TopK: 1, FallbackAnswer: "I don't know"})
	require.NoError(t, err)
	return svc, m
}

func TestBuildKnowledgeBase_OrderPreserved(t *testing.T) {
	p, err := pool.NewPool("test-embed", &pool.Config{Capacity: 4})
	require.NoError(t, err)
	defer p.Release()

	embedder := hashing.New(32)
	docs := make([]string, 11)
	for i := range docs {
		docs[i] = fmt.Sprintf("passage number %d about topic %d", i, i*7)
	}

	idx, err := BuildKnowledgeBase(context.Background(), embedder, store.FlatFactory, docs,
		&KnowledgeConfig{BatchSize: 3, Pool: p})
	require.NoError(t, err)
	require.Equal(t, len(docs), idx.Len())

	for i, doc := range docs {
		e, err := idx.Get(i)
		require.NoError(t, err)
		assert.Equal(t, doc, e.Text)

		want, err := embedder.EmbedSingle(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, want, e.Vector)
	}

	// 已封存
	assert.ErrorIs(t, idx.Add(context.Background(), store.Entry{Text: "x", Vector: make([]float32, 32)}), store.ErrSealed)
}

func TestBuildKnowledgeBase_SelfSearch(t *testing.T) {
	embedder := hashing.New(hashing.DefaultDimension)
	docs := []string{
		"Paris is the capital of France.",
		"Berlin is the capital of Germany.",
		"The Nile is the longest river in Africa.",
	}

	idx, err := BuildKnowledgeBase(context.Background(), embedder, store.FlatFactory, docs, &KnowledgeConfig{BatchSize: 1})
	require.NoError(t, err)

	for i, doc := range docs {
		vec, err := embedder.EmbedSingle(context.Background(), doc)
		require.NoError(t, err)
		matches, err := idx.Search(context.Background(), vec, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, i, matches[0].Position)
		assert.InDelta(t, 0, matches[0].Distance, 1e-5)
	}
}

func TestBuildKnowledgeBase_Empty(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}

	idx, err := BuildKnowledgeBase(context.Background(), embedder, store.FlatFactory, nil, &KnowledgeConfig{Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 4, idx.Dimension())
	assert.Equal(t, int32(0), embedder.calls.Load())
}

func TestBuildKnowledgeBase_EmbedFailure(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2, err: errors.New("connection refused")}

	_, err := BuildKnowledgeBase(context.Background(), embedder, store.FlatFactory, []string{"a"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBuildKnowledgeBase_FactoryFailure(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	factory := func(context.Context, int) (store.Index, error) {
		return nil, errors.New("milvus unavailable")
	}

	_, err := BuildKnowledgeBase(context.Background(), embedder, factory, []string{"a"}, nil)
	assert.ErrorContains(t, err, "milvus unavailable")
}

func TestGenerator_RenderPrompt(t *testing.T) {
	g := NewGenerator(&fakeChat{}, &GeneratorConfig{PromptTemplate: testTemplate, FallbackAnswer: "Não sei."}, nil)

	got := g.RenderPrompt("Paris is the capital of France.", "Which city is {{context}}?")
	assert.Equal(t,
		"Context: Paris is the capital of France.\nQuestion: Which city is {{context}}?\nIf unsure say Não sei..",
		got)
}

func TestGenerator_Generate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "trimmed", content: "  Paris.\n", want: "Paris."},
		{name: "empty falls back", content: "", want: "I don't know"},
		{name: "whitespace falls back", content: " \n\t", want: "I don't know"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{content: tt.content}
			g := NewGenerator(chat, &GeneratorConfig{PromptTemplate: testTemplate, FallbackAnswer: "I don't know"}, nil)

			got, err := g.Generate(context.Background(), "ctx", "q")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int32(1), chat.calls.Load())
		})
	}
}

func TestGenerator_UpstreamErrorPreserved(t *testing.T) {
	chat := &fakeChat{err: &httpclient.StatusError{StatusCode: 503, Body: "Service Unavailable"}}
	g := NewGenerator(chat, &GeneratorConfig{PromptTemplate: testTemplate, FallbackAnswer: "x"}, metrics.New())

	_, err := g.Generate(context.Background(), "ctx", "q")
	se, ok := httpclient.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 503, se.StatusCode)
	assert.Equal(t, "Service Unavailable", se.Body)
}

func TestService_AskParis(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2, vectors: map[string][]float32{
		"Paris is the capital of France.":   {1, 0},
		"Berlin is the capital of Germany.": {0, 1},
		"What is the capital of France?":    {0.9, 0.1},
	}}
	chat := &fakeChat{content: "Paris.", usage: &llm.TokenUsage{PromptTokens: 20, CompletionTokens: 2}}

	svc, m := newTestService(t, []string{
		"Paris is the capital of France.",
		"Berlin is the capital of Germany.",
	}, embedder, chat)

	res, err := svc.Ask(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, 0, res.Position)
	assert.False(t, res.Fallback)
	assert.InDelta(t, 0.02, res.Distance, 1e-6)

	require.Len(t, chat.prompts, 1)
	assert.True(t, strings.HasPrefix(chat.prompts[0], "Context: Paris is the capital of France.\n"))
	assert.Contains(t, chat.prompts[0], "Question: What is the capital of France?")

	queries := m.Stats()["queries"].(map[string]any)
	assert.Equal(t, uint64(1), queries["ok"])
}

func TestService_EmptyIndexFallback(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	chat := &fakeChat{content: "should not be used"}

	svc, m := newTestService(t, nil, embedder, chat)

	res, err := svc.Ask(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know", res.Answer)
	assert.True(t, res.Fallback)
	assert.Equal(t, int32(0), chat.calls.Load())

	queries := m.Stats()["queries"].(map[string]any)
	assert.Equal(t, uint64(1), queries["fallback"])
}

func TestService_EmptyIndexIgnoresEmbedderDimension(t *testing.T) {
	// 空知识库按配置维度建索引，真实模型的维度可能不同
	idx, err := BuildKnowledgeBase(context.Background(), &fakeEmbedder{dim: 768}, store.FlatFactory, nil, &KnowledgeConfig{Dimension: 384})
	require.NoError(t, err)
	require.Equal(t, 384, idx.Dimension())

	m := metrics.New()
	chat := &fakeChat{content: "should not be used"}
	gen := NewGenerator(chat, &GeneratorConfig{PromptTemplate: testTemplate, FallbackAnswer: "I don't know"}, m)
	svc, err := NewService(idx, &fakeEmbedder{dim: 768}, gen, m, &ServiceConfig{TopK: 1, FallbackAnswer: "I don't know"})
	require.NoError(t, err)

	res, err := svc.Ask(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know", res.Answer)
	assert.True(t, res.Fallback)
	assert.Equal(t, int32(0), chat.calls.Load())
}

func TestService_SearchFailureWrapped(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	chat := &fakeChat{content: "x"}
	svc, _ := newTestService(t, []string{"a"}, embedder, chat)

	// 非空索引仍然拒绝维度不一致的查询
	embedder.dim = 3
	_, err := svc.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrKnowledgeIndex)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
	assert.NotErrorIs(t, err, ErrGeneration)
	assert.Equal(t, int32(0), chat.calls.Load())
}

func TestService_BlankQuestion(t *testing.T) {
	chat := &fakeChat{content: "x"}
	svc, _ := newTestService(t, []string{"a"}, &fakeEmbedder{dim: 2}, chat)

	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, int32(0), chat.calls.Load())
}

func TestService_UpstreamError(t *testing.T) {
	chat := &fakeChat{err: &httpclient.StatusError{StatusCode: 503, Body: "Service Unavailable"}}
	svc, m := newTestService(t, []string{"a"}, &fakeEmbedder{dim: 2}, chat)

	_, err := svc.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrGeneration)
	se, ok := httpclient.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 503, se.StatusCode)

	queries := m.Stats()["queries"].(map[string]any)
	assert.Equal(t, uint64(1), queries["errors"])
}

func TestService_EmbedError(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	chat := &fakeChat{content: "x"}
	svc, _ := newTestService(t, []string{"a"}, embedder, chat)

	embedder.err = errors.New("dial tcp: timeout")
	_, err := svc.Ask(context.Background(), "q")
	assert.ErrorContains(t, err, "failed to embed question")
	assert.NotErrorIs(t, err, ErrGeneration)
	assert.Equal(t, int32(0), chat.calls.Load())
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(nil, &fakeEmbedder{}, &Generator{}, nil, nil)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 5))
	assert.Equal(t, "ação", preview("ação e reação", 4))
}
