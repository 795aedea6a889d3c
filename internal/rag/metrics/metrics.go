// Package metrics 提供 RAG 服务的业务指标收集。
// 指标注册在独立的 Prometheus Registry 中，通过 /metrics 暴露。
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/rag-ask/pkg/utils/httpclient"
)

const namespace = "rag"

// Result 查询结果分类。
type Result string

const (
	ResultOK       Result = "ok"
	ResultFallback Result = "fallback"
	ResultError    Result = "error"
)

// RAGMetrics RAG 服务业务指标。
type RAGMetrics struct {
	registry *prometheus.Registry

	queriesTotal      *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	retrievalDuration prometheus.Histogram
	llmDuration       prometheus.Histogram
	llmTokens         *prometheus.CounterVec
	llmErrors         *prometheus.CounterVec
	documents         prometheus.Gauge

	// 快照计数，供 Stats 使用
	queriesOK       atomic.Uint64
	queriesFallback atomic.Uint64
	queriesErrors   atomic.Uint64
	llmCalls        atomic.Uint64
	llmCallErrors   atomic.Uint64
	tokensPrompt    atomic.Uint64
	tokensComplete  atomic.Uint64
	documentsCount  atomic.Int64
	startTime       time.Time
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, in a fresh registry.
func New() *RAGMetrics {
	m := &RAGMetrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of questions answered, by result.",
		}, []string{"result"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end latency of a question.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of embedding the question and searching the index.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_duration_seconds",
			Help:      "Latency of chat-completion calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the chat-completion endpoint.",
		}, []string{"type"}),
		llmErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_errors_total",
			Help:      "Failed chat-completion calls, by upstream status.",
		}, []string{"status"}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_documents",
			Help:      "Number of passages in the knowledge base.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queriesTotal,
		m.queryDuration,
		m.retrievalDuration,
		m.llmDuration,
		m.llmTokens,
		m.llmErrors,
		m.documents,
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *RAGMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for the registry.
func (m *RAGMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordQuery 记录一次问答。
func (m *RAGMetrics) RecordQuery(result Result, duration time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(string(result)).Inc()
	m.queryDuration.Observe(duration.Seconds())

	switch result {
	case ResultOK:
		m.queriesOK.Add(1)
	case ResultFallback:
		m.queriesFallback.Add(1)
	default:
		m.queriesErrors.Add(1)
	}
}

// RecordRetrieval 记录检索耗时。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(duration.Seconds())
}

// RecordLLMCall 记录 LLM 调用。
func (m *RAGMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	m.llmCalls.Add(1)
	m.llmDuration.Observe(duration.Seconds())

	if err != nil {
		m.llmCallErrors.Add(1)
		m.llmErrors.WithLabelValues(StatusLabel(err)).Inc()
		return
	}

	if promptTokens > 0 {
		m.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
		m.tokensPrompt.Add(uint64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
		m.tokensComplete.Add(uint64(completionTokens))
	}
}

// SetDocuments 记录知识库段落数。
func (m *RAGMetrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(n))
	m.documentsCount.Store(int64(n))
}

// StatusLabel 返回错误对应的状态标签：上游 HTTP 状态码、timeout 或 error。
func StatusLabel(err error) string {
	if se, ok := httpclient.AsStatusError(err); ok {
		return strconv.Itoa(se.StatusCode)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return "timeout"
	}
	return "error"
}

// Stats 返回当前统计信息快照。
func (m *RAGMetrics) Stats() map[string]any {
	ok := m.queriesOK.Load()
	fallback := m.queriesFallback.Load()
	failed := m.queriesErrors.Load()

	return map[string]any{
		"queries": map[string]any{
			"total":    ok + fallback + failed,
			"ok":       ok,
			"fallback": fallback,
			"errors":   failed,
		},
		"llm": map[string]any{
			"calls_total":       m.llmCalls.Load(),
			"errors":            m.llmCallErrors.Load(),
			"tokens_prompt":     m.tokensPrompt.Load(),
			"tokens_completion": m.tokensComplete.Load(),
		},
		"knowledge_documents": m.documentsCount.Load(),
		"uptime_seconds":      time.Since(m.startTime).Seconds(),
	}
}
