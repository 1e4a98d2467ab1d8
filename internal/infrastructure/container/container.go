// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/application/ingest"
	"github.com/sommekat/sommelier/internal/application/pairing"
	"github.com/sommekat/sommelier/internal/application/response"
	"github.com/sommekat/sommelier/internal/infrastructure/ai"
	"github.com/sommekat/sommelier/internal/infrastructure/config"
	"github.com/sommekat/sommelier/internal/infrastructure/fetch"
	"github.com/sommekat/sommelier/internal/infrastructure/http/apiserver"
	"github.com/sommekat/sommelier/internal/infrastructure/monitoring"
	"github.com/sommekat/sommelier/internal/ports/inbound"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	"github.com/sommekat/sommelier/pkg/healthcheck"
	"github.com/sommekat/sommelier/pkg/logger"
)

// Module provides the full API server. configPath may be empty.
func Module(configPath string) fx.Option {
	return fx.Options(
		CoreModule(configPath),
		HTTPModule,
		fx.Invoke(RegisterServerHooks),
	)
}

// CoreModule provides everything the pairing pipeline needs, without a
// network listener. The CLI uses it on its own.
func CoreModule(configPath string) fx.Option {
	return fx.Options(
		fx.Provide(func() (*config.Config, error) {
			return config.Load(configPath)
		}),
		LoggerModule,
		MonitoringModule,
		AdapterModule,
		ServiceModule,
	)
}

// LoggerModule provides logging
var LoggerModule = fx.Options(
	fx.Provide(func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	}),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, level zap.AtomicLevel, log *zap.Logger) {
		cfg.Watch(level, log)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
	}),
)

// MonitoringModule provides Prometheus metrics and the OpenTelemetry providers.
var MonitoringModule = fx.Provide(
	monitoring.NewMetrics,
	func(m *monitoring.Metrics) outbound.PipelineObserver { return m },
	func(lc fx.Lifecycle, cfg *config.Config, m *monitoring.Metrics, log *zap.Logger) (*monitoring.Telemetry, error) {
		t, err := monitoring.NewTelemetry(monitoring.TelemetryConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			TracingEnabled: cfg.Monitoring.EnableTracing,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
		}, m, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: t.Shutdown})
		return t, nil
	},
)

// AdapterModule provides the outbound adapters: page fetching and completion.
var AdapterModule = fx.Provide(
	func(cfg *config.Config, m *monitoring.Metrics, log *zap.Logger) (outbound.PageFetcher, error) {
		return fetch.New(fetch.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			AcceptLanguage:    cfg.Fetch.AcceptLanguage,
			Timeout:           cfg.Fetch.Timeout,
			MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
		}, m, log)
	},
	// Telemetry is a dependency so the token counter binds to the real meter provider.
	func(cfg *config.Config, m *monitoring.Metrics, _ *monitoring.Telemetry, log *zap.Logger) (*ai.Completer, error) {
		return ai.NewCompleter(ai.Config{
			Provider:         cfg.AI.Provider,
			Temperature:      cfg.AI.Temperature,
			Timeout:          cfg.AI.Timeout,
			AnthropicKey:     cfg.AI.AnthropicKey,
			AnthropicModel:   cfg.AI.AnthropicModel,
			AnthropicBaseURL: cfg.AI.AnthropicBaseURL,
			OpenAIKey:        cfg.AI.OpenAIKey,
			OpenAIModel:      cfg.AI.OpenAIModel,
			OpenAIBaseURL:    cfg.AI.OpenAIBaseURL,
			BreakerFailures:  cfg.AI.BreakerFailures,
			BreakerCooldown:  cfg.AI.BreakerCooldown,
		}, m, log)
	},
	func(c *ai.Completer) outbound.Completer { return c },
	NewHealthCheck,
)

// NewHealthCheck registers readiness checks for the completion provider:
// its circuit state and whether its endpoint answers.
func NewHealthCheck(cfg *config.Config, completer *ai.Completer, log *zap.Logger) *healthcheck.HealthCheck {
	h := healthcheck.New(cfg.App.Version, log)
	h.Register("ai_circuit", completer.Breaker().Checker())
	h.Register("ai_endpoint", healthcheck.NewExternalServiceChecker(completer.Endpoint(), 3*time.Second))
	return h
}

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	response.NewParser,
	func(cfg *config.Config, fetcher outbound.PageFetcher, observer outbound.PipelineObserver, log *zap.Logger) *ingest.Normalizer {
		limits := ingest.DefaultLimits()
		limits.MaxLevel1 = cfg.Crawl.MaxLevel1
		limits.MaxSubpages = cfg.Crawl.MaxTotalSubpages
		limits.MinSubpageChars = cfg.Crawl.MinSubpageChars
		limits.MenuTextLimit = cfg.Crawl.MenuTextLimit
		limits.RecipeTextLimit = cfg.Crawl.RecipeTextLimit
		limits.RecipeMinChars = cfg.Crawl.RecipeMinChars
		return ingest.NewNormalizer(fetcher, limits, observer, log)
	},
	fx.Annotate(
		func(
			cfg *config.Config,
			normalizer *ingest.Normalizer,
			completer outbound.Completer,
			parser *response.Parser,
			observer outbound.PipelineObserver,
			log *zap.Logger,
		) *pairing.PairingService {
			return pairing.NewPairingService(normalizer, completer, parser, observer, pairing.Config{
				MenuMaxTokens:   cfg.AI.MenuMaxTokens,
				RecipeMaxTokens: cfg.AI.RecipeMaxTokens,
				MaxFileBytes:    cfg.Server.MaxUploadBytes,
			}, log)
		},
		fx.As(new(inbound.PairingService)),
	),
)

// HTTPModule provides HTTP server and handlers
var HTTPModule = fx.Provide(
	apiserver.NewServer,
)

// RegisterServerHooks starts the API server with the application and drains
// it on stop.
func RegisterServerHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	server *apiserver.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting sommelier",
				append([]zap.Field{
					zap.String("version", cfg.App.Version),
					zap.String("environment", cfg.App.Environment),
				}, cfg.SafeFields()...)...,
			)

			go func() {
				if err := server.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped unexpectedly", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down sommelier")
			return server.Shutdown(ctx)
		},
	})
}
