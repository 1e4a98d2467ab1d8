// Package response turns free-form model output into typed pairing results.
package response

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	apperrors "github.com/sommekat/sommelier/pkg/errors"
)

// menuEnvelopeSchema describes the current object format. Pairing elements are
// checked one at a time so a malformed element does not reject the response.
const menuEnvelopeSchema = `{
	"type": "object",
	"required": ["pairings"],
	"properties": {
		"pairings": {"type": "array"}
	}
}`

// Outcome names which extraction path produced a result.
type Outcome string

const (
	OutcomeObject Outcome = "object"
	OutcomeLegacy Outcome = "legacy_array"
)

// Parser extracts and normalizes pairing results.
type Parser struct {
	logger     *zap.Logger
	menuSchema *gojsonschema.Schema
}

// NewParser compiles the response schemas.
func NewParser(logger *zap.Logger) (*Parser, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(menuEnvelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile menu schema: %w", err)
	}
	return &Parser{
		logger:     logger.Named("response-parser"),
		menuSchema: schema,
	}, nil
}

type menuEnvelope struct {
	RestaurantName *string           `json:"restaurantName"`
	MenuCurrency   *string           `json:"menuCurrency"`
	Pairings       []json.RawMessage `json:"pairings"`
}

type recipeEnvelope struct {
	RecipeName  *string           `json:"recipeName"`
	Description *string           `json:"description"`
	Pairings    []json.RawMessage `json:"pairings"`
}

// ParseMenu extracts a MenuPairingResult from raw model output. The current
// object format is preferred; a bare array of pairings is accepted as a
// fallback and yields a result with no restaurant name or currency.
func (p *Parser) ParseMenu(raw string) (*pairing.MenuPairingResult, Outcome, error) {
	cleaned := StripFences(raw)

	if obj, ok := ExtractBalanced(cleaned, '{', '}', p.isMenuEnvelope); ok {
		var env menuEnvelope
		if err := json.Unmarshal([]byte(obj), &env); err == nil {
			result := &pairing.MenuPairingResult{
				RestaurantName: deref(env.RestaurantName),
				MenuCurrency:   deref(env.MenuCurrency),
				Pairings:       p.normalizeDishes(env.Pairings),
			}
			return p.checkMenu(result, OutcomeObject)
		}
	}

	arr, ok := ExtractBalanced(cleaned, '[', ']', nil)
	if !ok {
		return nil, "", apperrors.NewNoJSONFoundError(raw)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &elements); err != nil {
		return nil, "", apperrors.NewNoJSONFoundError(raw)
	}

	p.logger.Info("Parsed legacy array response", zap.Int("elements", len(elements)))
	return p.checkMenu(&pairing.MenuPairingResult{Pairings: p.normalizeDishes(elements)}, OutcomeLegacy)
}

// ParseRecipe extracts a RecipeResult. A missing or null recipeName means the
// model did not recognise a recipe.
func (p *Parser) ParseRecipe(raw string) (*pairing.RecipeResult, error) {
	cleaned := StripFences(raw)

	obj, ok := ExtractBalanced(cleaned, '{', '}', nil)
	if !ok {
		return nil, apperrors.NewNoJSONFoundError(raw)
	}

	var env recipeEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return nil, apperrors.NewNoJSONFoundError(raw)
	}
	if deref(env.RecipeName) == "" {
		return nil, apperrors.NewNotRecognizedError(string(pairing.TaskRecipe))
	}

	result := &pairing.RecipeResult{
		RecipeName:  deref(env.RecipeName),
		Description: deref(env.Description),
		Pairings:    make([]pairing.RecipePairing, 0, len(env.Pairings)),
	}
	for i, element := range env.Pairings {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(element, &m); err != nil {
			p.logger.Warn("Skipping malformed recipe pairing", zap.Int("index", i), zap.Error(err))
			continue
		}
		result.Pairings = append(result.Pairings, normalizeRecipePairing(m))
	}
	return result, nil
}

// Parse dispatches on task type.
func (p *Parser) Parse(raw string, task pairing.TaskType) (interface{}, error) {
	switch task {
	case pairing.TaskMenu:
		result, _, err := p.ParseMenu(raw)
		return result, err
	case pairing.TaskRecipe:
		return p.ParseRecipe(raw)
	default:
		return nil, apperrors.NewInternalError(fmt.Sprintf("unknown task type %q", task))
	}
}

func (p *Parser) isMenuEnvelope(candidate []byte) bool {
	result, err := p.menuSchema.Validate(gojsonschema.NewBytesLoader(candidate))
	if err != nil {
		return false
	}
	return result.Valid()
}

func (p *Parser) normalizeDishes(elements []json.RawMessage) []pairing.DishPairing {
	dishes := make([]pairing.DishPairing, 0, len(elements))
	for i, element := range elements {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(element, &m); err != nil {
			p.logger.Warn("Skipping malformed dish pairing", zap.Int("index", i), zap.Error(err))
			continue
		}
		dishes = append(dishes, normalizeDish(m))
	}
	return dishes
}

// checkMenu rejects a result with nothing in it rather than returning it
// silently. A missing restaurantName is deliberately not treated as
// NOT_RECOGNIZED: many real menus carry no name, so only an empty pairings
// list means the model found no menu.
func (p *Parser) checkMenu(result *pairing.MenuPairingResult, outcome Outcome) (*pairing.MenuPairingResult, Outcome, error) {
	if len(result.Pairings) == 0 {
		return nil, outcome, apperrors.NewNotRecognizedError(string(pairing.TaskMenu))
	}
	return result, outcome, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
