package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rag-ask/internal/rag/biz"
	"github.com/kart-io/rag-ask/internal/rag/handler"
	"github.com/kart-io/rag-ask/internal/rag/metrics"
	"github.com/kart-io/rag-ask/internal/rag/store"
	httpserver "github.com/kart-io/rag-ask/pkg/infra/server/http"
	"github.com/kart-io/rag-ask/pkg/llm"
	"github.com/kart-io/rag-ask/pkg/llm/hashing"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	httpopts "github.com/kart-io/rag-ask/pkg/options/server/http"
)

type echoChat struct{}

func (echoChat) Name() string { return "echo" }

func (echoChat) Chat(_ context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Content: "ok"}, nil
}

func (e echoChat) Generate(ctx context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	return e.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

func newServer(t *testing.T, metricsOpts *mwopts.MetricsOptions) http.Handler {
	t.Helper()

	embedder := hashing.New(64)
	idx, err := biz.BuildKnowledgeBase(context.Background(), embedder, store.FlatFactory,
		[]string{"Paris is the capital of France."}, &biz.KnowledgeConfig{BatchSize: 4, Dimension: 64})
	require.NoError(t, err)

	m := metrics.New()
	gen := biz.NewGenerator(echoChat{}, &biz.GeneratorConfig{PromptTemplate: "{{context}} {{question}}", FallbackAnswer: "I don't know"}, m)
	svc, err := biz.NewService(idx, embedder, gen, m, nil)
	require.NoError(t, err)

	opts := httpopts.NewOptions()
	opts.Mode = httpopts.ModeTest
	mw := mwopts.NewOptions()
	mw.Metrics = metricsOpts

	srv := httpserver.NewServer(opts, mw)
	Register(srv.Engine(), handler.NewRAGHandler(svc, "online banner"), m.Handler(), metricsOpts)
	return srv.Engine()
}

func TestRegister_Routes(t *testing.T) {
	r := newServer(t, mwopts.NewMetricsOptions())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/", "", http.StatusOK},
		{"ask", http.MethodPost, "/ask", `{"question":"capital of France?"}`, http.StatusOK},
		{"ask missing question", http.MethodPost, "/ask", `{}`, http.StatusUnprocessableEntity},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/ask", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRegister_NotFoundEnvelope(t *testing.T) {
	r := newServer(t, mwopts.NewMetricsOptions())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "code")
	assert.Equal(t, "Route not found", body["message"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), body["request_id"])
}

func TestRegister_MetricsExposition(t *testing.T) {
	r := newServer(t, mwopts.NewMetricsOptions())

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"capital of France?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	data, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Contains(t, string(data), `rag_queries_total{result="ok"} 1`)
	assert.Contains(t, string(data), "rag_knowledge_documents 1")
}

func TestRegister_MetricsDisabled(t *testing.T) {
	opts := mwopts.NewMetricsOptions()
	opts.Enabled = false
	r := newServer(t, opts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegister_BodyLimit(t *testing.T) {
	r := newServer(t, mwopts.NewMetricsOptions())

	big := `{"question":"` + strings.Repeat("x", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
