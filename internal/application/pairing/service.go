// Package pairing provides the application layer for wine pairing.
// This implements the use cases defined in the inbound ports
package pairing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/application/ingest"
	"github.com/sommekat/sommelier/internal/application/prompt"
	"github.com/sommekat/sommelier/internal/application/response"
	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/inbound"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	"github.com/sommekat/sommelier/pkg/errors"
)

var tracer = otel.Tracer("github.com/sommekat/sommelier/internal/application/pairing")

// SourceNormalizer converts a source into content parts.
type SourceNormalizer interface {
	Normalize(ctx context.Context, src pairing.Source, role ingest.Role) ([]pairing.ContentPart, error)
}

// Config holds pipeline limits.
type Config struct {
	MenuMaxTokens   int
	RecipeMaxTokens int
	MaxFileBytes    int64
}

// DefaultConfig returns the production token budgets and upload limit.
func DefaultConfig() Config {
	return Config{
		MenuMaxTokens:   6500,
		RecipeMaxTokens: 1500,
		MaxFileBytes:    20 << 20,
	}
}

// PairingService implements the pairing use cases
type PairingService struct {
	normalizer SourceNormalizer
	completer  outbound.Completer
	parser     *response.Parser
	observer   outbound.PipelineObserver
	cfg        Config
	logger     *zap.Logger
}

// NewPairingService creates a new pairing service
func NewPairingService(
	normalizer SourceNormalizer,
	completer outbound.Completer,
	parser *response.Parser,
	observer outbound.PipelineObserver,
	cfg Config,
	logger *zap.Logger,
) *PairingService {
	if observer == nil {
		observer = outbound.NopObserver{}
	}
	return &PairingService{
		normalizer: normalizer,
		completer:  completer,
		parser:     parser,
		observer:   observer,
		cfg:        cfg,
		logger:     logger.Named("pairing-service"),
	}
}

var _ inbound.PairingService = (*PairingService)(nil)

// PairMenu fetches the food source and optional wine list, asks the model for
// one pairing per dish and parses the reply. Food and wine material go into a
// single completion request.
func (s *PairingService) PairMenu(ctx context.Context, cmd inbound.MenuPairingCommand) (result *pairing.MenuPairingResult, err error) {
	ctx, finish := s.begin(ctx, pairing.TaskMenu)
	defer func() { finish(err) }()

	if err := s.validateMenu(cmd); err != nil {
		return nil, err
	}
	opts := cmd.Options.WithDefaults(pairing.TaskMenu)
	hasWine := !cmd.Wine.IsZero()

	parts, err := s.normalizer.Normalize(ctx, cmd.Food, ingest.RoleFood)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read food source")
	}
	if hasWine {
		wineParts, err := s.normalizer.Normalize(ctx, cmd.Wine, ingest.RoleWine)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read wine source")
		}
		parts = append(parts, wineParts...)
	}

	p := prompt.Build(pairing.TaskMenu, prompt.Inputs{Options: opts, HasWineList: hasWine})
	s.logger.Debug("Built menu prompt",
		zap.Strings("addenda", p.Addenda),
		zap.Int("parts", len(parts)+1),
	)

	text, err := s.complete(ctx, pairing.TaskMenu, p, parts, s.cfg.MenuMaxTokens)
	if err != nil {
		return nil, err
	}

	result, outcome, err := s.parser.ParseMenu(text)
	s.observer.ParseCompleted(pairing.TaskMenu, parseOutcome(outcome, err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Menu paired",
		zap.String("restaurant", result.RestaurantName),
		zap.String("menu_currency", result.MenuCurrency),
		zap.Int("pairings", len(result.Pairings)),
	)
	return result, nil
}

// PairRecipe recommends wines for a recipe page or uploaded recipe images.
func (s *PairingService) PairRecipe(ctx context.Context, cmd inbound.RecipePairingCommand) (result *pairing.RecipeResult, err error) {
	ctx, finish := s.begin(ctx, pairing.TaskRecipe)
	defer func() { finish(err) }()

	if err := cmd.Source.Validate(s.cfg.MaxFileBytes); err != nil {
		return nil, errors.NewInputError(err.Error())
	}
	opts := pairing.PairingOptions{TargetCountry: cmd.TargetCountry}.WithDefaults(pairing.TaskRecipe)

	parts, err := s.normalizer.Normalize(ctx, cmd.Source, ingest.RoleRecipe)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recipe source")
	}

	p := prompt.Build(pairing.TaskRecipe, prompt.Inputs{Options: opts})

	text, err := s.complete(ctx, pairing.TaskRecipe, p, parts, s.cfg.RecipeMaxTokens)
	if err != nil {
		return nil, err
	}

	result, err = s.parser.ParseRecipe(text)
	s.observer.ParseCompleted(pairing.TaskRecipe, parseOutcome(response.OutcomeObject, err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recipe paired",
		zap.String("recipe", result.RecipeName),
		zap.Int("pairings", len(result.Pairings)),
	)
	return result, nil
}

// complete sends source parts followed by the instruction suffix. A
// truncated reply is reported as OutputTruncated and never parsed.
func (s *PairingService) complete(ctx context.Context, task pairing.TaskType, p prompt.Prompt, parts []pairing.ContentPart, maxTokens int) (string, error) {
	req := outbound.CompletionRequest{
		System:      p.System,
		Parts:       append(parts, pairing.TextPart(p.UserSuffix)),
		MaxTokens:   maxTokens,
		CacheSystem: true,
	}

	completion, err := s.completer.Complete(ctx, req)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return "", appErr
		}
		return "", errors.NewExternalServiceError("language model", err)
	}

	if completion.Truncated {
		s.observer.Truncated(task)
		s.logger.Warn("Completion truncated",
			zap.String("task", string(task)),
			zap.Int("max_tokens", maxTokens),
			zap.Int("output_tokens", completion.OutputTokens),
		)
		return "", errors.NewOutputTruncatedError(string(task))
	}
	return completion.Text, nil
}

// begin starts a span and returns a func that records the outcome.
func (s *PairingService) begin(ctx context.Context, task pairing.TaskType) (context.Context, func(error)) {
	runID := uuid.NewString()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pairing."+string(task))
	span.SetAttributes(attribute.String("pairing.run_id", runID))

	log := s.logger.With(zap.String("run_id", runID), zap.String("task", string(task)))
	log.Debug("Pairing started")

	return ctx, func(err error) {
		elapsed := time.Since(start)
		code := "OK"
		if err != nil {
			code = string(errors.GetCode(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
			log.Warn("Pairing failed", zap.String("code", code), zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			log.Info("Pairing completed", zap.Duration("elapsed", elapsed))
		}
		s.observer.PipelineCompleted(task, code, elapsed)
		span.End()
	}
}

func (s *PairingService) validateMenu(cmd inbound.MenuPairingCommand) error {
	if err := cmd.Food.Validate(s.cfg.MaxFileBytes); err != nil {
		return errors.NewInputError(err.Error())
	}
	if !cmd.Wine.IsZero() {
		if err := cmd.Wine.Validate(s.cfg.MaxFileBytes); err != nil {
			return errors.NewInputError("wine list: " + err.Error())
		}
	}
	if err := cmd.Options.Validate(); err != nil {
		return errors.NewInputError(err.Error())
	}
	return nil
}

func parseOutcome(outcome response.Outcome, err error) string {
	if err != nil {
		return string(errors.GetCode(err))
	}
	return string(outcome)
}
