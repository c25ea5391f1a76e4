package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"engage-kb-platform/internal/ai"
	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/telemetry"
	"engage-kb-platform/models"
)

// Fixed user-visible answers for the non-LLM and degraded paths.
const (
	NoRelevantContentMessage = "知识库中暂无相关内容，请尝试换个问法或联系人工客服。"
	DegradedAnswerMessage    = "抱歉，智能回答服务暂时不可用，请稍后再试。"
)

const synthesisInstruction = "你是客服知识库助手。请仅根据提供的参考资料回答用户问题；" +
	"如果资料中没有答案，请直接说明资料中未包含相关信息；回答保持简洁准确。"

// DefaultCompletionTimeout bounds the external completion call; a
// timeout is treated like any other service failure.
const DefaultCompletionTimeout = 30 * time.Second

// Synthesizer turns retrieved passages into a final answer. With no
// completion credential configured it returns the assembled context
// verbatim; it never fails a query, only degrades it.
type Synthesizer struct {
	completer ai.Completer // nil when no credential is configured
	timeout   time.Duration
	metrics   *telemetry.Metrics
}

func NewSynthesizer(completer ai.Completer, timeout time.Duration, metrics *telemetry.Metrics) *Synthesizer {
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &Synthesizer{completer: completer, timeout: timeout, metrics: metrics}
}

// Synthesize produces an answer for the query from the retrieved
// chunks and FAQs. It always returns some answer, never an error.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []models.DocumentChunk, faqs []models.FAQ) string {
	tracer := otel.Tracer("synthesizer")
	ctx, span := tracer.Start(ctx, "synthesizer.synthesize")
	defer span.End()

	contextBlock := BuildContext(chunks, faqs)
	span.SetAttributes(
		attribute.Int("synthesis.chunks", len(chunks)),
		attribute.Int("synthesis.faqs", len(faqs)),
		attribute.Bool("synthesis.llm", s.completer != nil),
	)

	if s.completer == nil {
		if contextBlock == "" {
			return NoRelevantContentMessage
		}
		return contextBlock
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: synthesisInstruction + "\n\n参考资料：\n" + contextBlock},
		{Role: ai.RoleUser, Content: query},
	}
	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		logger.Error("completion failed, returning degraded answer", "error", err)
		span.SetAttributes(attribute.Bool("synthesis.degraded", true))
		if s.metrics != nil {
			s.metrics.RecordSynthesisFallback()
		}
		return DegradedAnswerMessage
	}
	return answer
}

// BuildContext assembles the grounding context block: chunk contents
// separated by blank lines, then a FAQ section with each pair rendered
// as "Q: ...\nA: ...".
func BuildContext(chunks []models.DocumentChunk, faqs []models.FAQ) string {
	var sections []string

	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = c.Content
		}
		sections = append(sections, strings.Join(parts, "\n\n"))
	}

	if len(faqs) > 0 {
		parts := make([]string, len(faqs))
		for i, f := range faqs {
			parts[i] = fmt.Sprintf("Q: %s\nA: %s", f.Question, f.Answer)
		}
		sections = append(sections, "常见问题：\n"+strings.Join(parts, "\n\n"))
	}

	return strings.Join(sections, "\n\n---\n\n")
}
