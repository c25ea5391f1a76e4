package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Message roles for completion requests.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn sent to the completion service.
type Message struct {
	Role    string
	Content string
}

// Completer is the external completion-service collaborator. A nil
// Completer is the expected configuration when no credential is set;
// callers handle it with their non-LLM fallback path.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// GeminiCompleter wraps the Gemini API with a circuit breaker and a
// request rate limiter so a degraded upstream cannot pile up calls.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// NewGeminiCompleter builds a completer for the given API key. Callers
// should not construct one when the key is empty; that configuration
// means "no completion service" rather than an error.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Free-tier request budget with some headroom.
	rateLimiter := rate.NewLimiter(rate.Limit(10*0.9/60.0), 2)

	return &GeminiCompleter{
		client:      client,
		model:       model,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

// Complete sends one completion request and returns the response text.
// System messages become the model's system instruction, user messages
// the prompt content.
func (g *GeminiCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	tracer := otel.Tracer("gemini-completer")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.Int("gemini.messages", len(messages)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	var system string
	var parts []genai.Part
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		default:
			parts = append(parts, genai.Text(m.Content))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no user content in completion request")
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.GenerativeModel(g.model)
		model.SetTemperature(0.3)
		model.SetMaxOutputTokens(1024)
		if system != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		}

		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, err
		}
		text := extractResponseText(resp)
		if text == "" {
			return nil, errors.New("empty completion response")
		}
		return text, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(string), nil
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	var text string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
		if text != "" {
			break
		}
	}
	return text
}

// Close releases the underlying API client.
func (g *GeminiCompleter) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
