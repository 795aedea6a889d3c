package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/internal/rag/metrics"
	"github.com/kart-io/rag-ask/pkg/infra/tracing"
	"github.com/kart-io/rag-ask/pkg/llm"
)

// Prompt template placeholders.
const (
	PlaceholderContext  = "{{context}}"
	PlaceholderQuestion = "{{question}}"
	PlaceholderFallback = "{{fallback}}"
)

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// PromptTemplate 提示词模板。
	PromptTemplate string
	// FallbackAnswer 模型返回空内容时的回复。
	FallbackAnswer string
}

// Generator 负责答案生成。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
	metrics      *metrics.RAGMetrics
}

// NewGenerator 创建生成器实例。m 可以为 nil。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig, m *metrics.RAGMetrics) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
		metrics:      m,
	}
}

// RenderPrompt fills the template in one pass, so placeholder text inside
// the context or the question is left as is.
func (g *Generator) RenderPrompt(passage, question string) string {
	return strings.NewReplacer(
		PlaceholderContext, passage,
		PlaceholderQuestion, question,
		PlaceholderFallback, g.config.FallbackAnswer,
	).Replace(g.config.PromptTemplate)
}

// Generate asks the chat model to answer question from passage.
// Failures are wrapped in ErrGeneration; the upstream error stays in the
// chain so the caller can recover the *httpclient.StatusError.
func (g *Generator) Generate(ctx context.Context, passage, question string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "rag.generate")
	defer span.End()

	prompt := g.RenderPrompt(passage, question)

	start := time.Now()
	resp, err := g.chatProvider.Generate(ctx, prompt, "")
	duration := time.Since(start)

	if err != nil {
		g.metrics.RecordLLMCall(duration, 0, 0, err)
		tracing.RecordError(ctx, err)
		logger.Errorw("LLM generation failed",
			"provider", g.chatProvider.Name(),
			"duration", duration.String(),
			"error", err.Error(),
		)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var promptTokens, completionTokens int
	if resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	g.metrics.RecordLLMCall(duration, promptTokens, completionTokens, nil)

	answer := strings.TrimSpace(resp.Content)
	logger.Debugw("LLM answer generated",
		"length", len(answer),
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens,
		"duration", duration.String(),
	)

	if answer == "" {
		return g.config.FallbackAnswer, nil
	}
	return answer, nil
}
