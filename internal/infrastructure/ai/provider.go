// Package ai selects the completion provider and instruments its calls.
package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/infrastructure/ai/anthropic"
	"github.com/sommekat/sommelier/internal/infrastructure/ai/openai"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	"github.com/sommekat/sommelier/pkg/errors"
	"github.com/sommekat/sommelier/pkg/healthcheck"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

var tracer = otel.Tracer("github.com/sommekat/sommelier/internal/infrastructure/ai")

// Recorder receives one measurement per completion call.
type Recorder interface {
	AIRequest(provider, model, status string, duration time.Duration)
}

// Config selects and configures the completion provider.
type Config struct {
	Provider    string
	Temperature float64
	Timeout     time.Duration

	AnthropicKey     string
	AnthropicModel   string
	AnthropicBaseURL string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Consecutive provider failures that open the circuit, and how long it
	// stays open. Zero values use the breaker defaults.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// NewCompleter builds the configured provider wrapped with tracing, metrics
// and a circuit breaker. recorder may be nil.
func NewCompleter(cfg Config, recorder Recorder, logger *zap.Logger) (*Completer, error) {
	namedLogger := logger.Named("ai")

	var (
		inner    outbound.Completer
		model    string
		endpoint string
	)
	switch cfg.Provider {
	case ProviderAnthropic, "":
		client := anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			BaseURL:     cfg.AnthropicBaseURL,
			Model:       cfg.AnthropicModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		inner, model = client, firstNonEmpty(cfg.AnthropicModel, anthropic.DefaultModel)
		endpoint = firstNonEmpty(cfg.AnthropicBaseURL, anthropic.DefaultBaseURL)
		cfg.Provider = ProviderAnthropic
	case ProviderOpenAI:
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		inner, model = client, firstNonEmpty(cfg.OpenAIModel, openai.DefaultModel)
		endpoint = firstNonEmpty(cfg.OpenAIBaseURL, openai.DefaultBaseURL)
	case ProviderOllama:
		client := openai.NewClient(openai.Config{
			BaseURL:     firstNonEmpty(cfg.OpenAIBaseURL, openai.OllamaBaseURL),
			Model:       firstNonEmpty(cfg.OpenAIModel, openai.OllamaModel),
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		inner, model = client, firstNonEmpty(cfg.OpenAIModel, openai.OllamaModel)
		endpoint = firstNonEmpty(cfg.OpenAIBaseURL, openai.OllamaBaseURL)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	tokens, err := otel.Meter("github.com/sommekat/sommelier/internal/infrastructure/ai").Int64Counter(
		"sommelier.ai.tokens",
		metric.WithDescription("Tokens consumed by completion calls"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}

	namedLogger.Info("AI provider selected",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
	)

	breaker := healthcheck.NewCircuitBreaker("ai_provider", healthcheck.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerCooldown,
		IsFailure:        isProviderFailure,
		OnStateChange: func(name string, from, to healthcheck.CircuitBreakerState) {
			namedLogger.Warn("AI provider circuit changed state",
				zap.String("provider", cfg.Provider),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Completer{
		inner:    inner,
		provider: cfg.Provider,
		model:    model,
		endpoint: endpoint,
		breaker:  breaker,
		recorder: recorder,
		tokens:   tokens,
		logger:   namedLogger,
	}, nil
}

// Completer is the instrumented completion client for the selected provider.
type Completer struct {
	inner    outbound.Completer
	provider string
	model    string
	endpoint string
	breaker  *healthcheck.CircuitBreaker
	recorder Recorder
	tokens   metric.Int64Counter
	logger   *zap.Logger
}

var _ outbound.Completer = (*Completer)(nil)

// Provider returns the selected provider name.
func (c *Completer) Provider() string { return c.provider }

// Endpoint returns the provider's base URL.
func (c *Completer) Endpoint() string { return c.endpoint }

// Breaker returns the circuit breaker guarding the provider.
func (c *Completer) Breaker() *healthcheck.CircuitBreaker { return c.breaker }

// Complete calls the provider unless its circuit is open.
func (c *Completer) Complete(ctx context.Context, req outbound.CompletionRequest) (*outbound.Completion, error) {
	ctx, span := tracer.Start(ctx, "ai.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", c.provider),
		attribute.String("ai.model", c.model),
		attribute.Int("ai.max_tokens", req.MaxTokens),
		attribute.Int("ai.parts", len(req.Parts)),
	)

	start := time.Now()
	var completion *outbound.Completion
	err := c.breaker.Execute(func() error {
		var err error
		completion, err = c.inner.Complete(ctx, req)
		return err
	})
	elapsed := time.Since(start)
	if stderrors.Is(err, healthcheck.ErrCircuitOpen) {
		err = errors.NewExternalServiceError(c.provider, err)
	}

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case completion.Truncated:
		status = "truncated"
	}
	if c.recorder != nil {
		c.recorder.AIRequest(c.provider, c.model, status, elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Completion failed",
			zap.String("provider", c.provider),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ai.stop_reason", completion.StopReason),
		attribute.Int("ai.input_tokens", completion.InputTokens),
		attribute.Int("ai.output_tokens", completion.OutputTokens),
	)
	c.tokens.Add(ctx, int64(completion.InputTokens), metric.WithAttributes(
		attribute.String("provider", c.provider),
		attribute.String("direction", "input"),
	))
	c.tokens.Add(ctx, int64(completion.OutputTokens), metric.WithAttributes(
		attribute.String("provider", c.provider),
		attribute.String("direction", "output"),
	))

	return completion, nil
}

// isProviderFailure counts transport errors, 429 and 5xx responses against
// the provider. Cancellation and request-specific rejections do not.
func isProviderFailure(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.CodeExternalServiceError {
		return stderrors.Is(err, context.DeadlineExceeded)
	}
	status, ok := appErr.Metadata["status"].(int)
	return !ok || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
