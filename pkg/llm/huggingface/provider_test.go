package huggingface

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rag-ask/pkg/llm"
	"github.com/kart-io/rag-ask/pkg/utils/httpclient"
	"github.com/kart-io/rag-ask/pkg/utils/json"
)

func TestEmbed_2D(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Inputs)
		require.NotNil(t, req.Options)
		assert.True(t, req.Options.WaitForModel)

		_, _ = w.Write([]byte(`[[1,2,3],[4,5,6]]`))
	}))
	defer server.Close()

	p, err := NewEmbeddingProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, vecs)
}

func TestEmbed_3DMeanPooled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[[1,2],[3,4]]]`))
	}))
	defer server.Close()

	p, err := NewEmbeddingProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	vec, err := p.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, vec)
}

func TestEmbed_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Model is loading"))
	}))
	defer server.Close()

	p, err := NewEmbeddingProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	_, err = p.EmbedSingle(context.Background(), "hello")
	se, ok := httpclient.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "Model is loading", se.Body)
}

func TestEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[1,2]]`))
	}))
	defer server.Close()

	p, err := NewEmbeddingProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestChat_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req chatRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "meta-llama/Meta-Llama-3-8B-Instruct", req.Model)
		assert.Equal(t, 200, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
		assert.Equal(t, "What is the capital?", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Paris."}}],"usage":{"prompt_tokens":12,"completion_tokens":2,"total_tokens":14}}`))
	}))
	defer server.Close()

	p, err := NewChatProvider(map[string]any{"base_url": server.URL + "/", "api_key": "hf_test"})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), "What is the capital?", "")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 12, resp.TokenUsage.PromptTokens)
	assert.Equal(t, 2, resp.TokenUsage.CompletionTokens)
}

func TestChat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p, err := NewChatProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
}

func TestChat_UpstreamErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable"))
	}))
	defer server.Close()

	p, err := NewChatProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "q", "")
	se, ok := httpclient.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "Service Unavailable", se.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChat_SystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	p, err := NewChatProvider(map[string]any{"base_url": server.URL, "api_key": "hf_test"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "q", "be brief")
	require.NoError(t, err)
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewChatProvider(map[string]any{})
	assert.Error(t, err)
	_, err = NewEmbeddingProvider(map[string]any{"api_key": ""})
	assert.Error(t, err)
}

func TestDefaultConfigs_Timeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), DefaultChatConfig().Timeout)
	assert.Equal(t, 120*time.Second, DefaultEmbeddingConfig().Timeout)
}

func TestApplyConfigMap(t *testing.T) {
	cfg := DefaultChatConfig()
	applyConfigMap(cfg, map[string]any{
		"chat_model":  "custom/model",
		"timeout":     time.Duration(0),
		"max_tokens":  50,
		"temperature": 0.0,
	})
	assert.Equal(t, "custom/model", cfg.ChatModel)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, 50, cfg.MaxTokens)
	assert.Equal(t, 0.0, cfg.Temperature)
}

func TestRegistered(t *testing.T) {
	_, err := llm.NewChatProvider(ProviderName, map[string]any{"api_key": "x"})
	assert.NoError(t, err)
	_, err = llm.NewEmbeddingProvider(ProviderName, map[string]any{"api_key": "x"})
	assert.NoError(t, err)
}
