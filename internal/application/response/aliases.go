package response

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

// dishFieldKeys maps each canonical DishPairing field to the keys the model
// may use for it, in lookup order. The prompt asks for the short keys.
var dishFieldKeys = map[string][]string{
	"dish":                  {"dish"},
	"description":           {"desc", "description"},
	"course":                {"course"},
	"menuSection":           {"menuSection"},
	"wineType":              {"wine", "wineType"},
	"altWineType":           {"altWine", "altWineType"},
	"bottleSuggestion":      {"suggestion", "bottleSuggestion"},
	"region":                {"region"},
	"producer":              {"producer"},
	"rationale":             {"rationale"},
	"vivinoRating":          {"vivino", "vivinoRating"},
	"retailPrice":           {"retail", "retailPrice"},
	"restaurantPriceGlass":  {"glassPrice", "restaurantPriceGlass"},
	"restaurantPriceBottle": {"bottlePrice", "restaurantPriceBottle"},
	"outsidePriceRange":     {"outOfRange", "outsidePriceRange"},
}

var recipeFieldKeys = map[string][]string{
	"wineType":   {"wineType", "wine"},
	"suggestion": {"suggestion", "bottleSuggestion"},
	"winery":     {"winery", "producer"},
	"blend":      {"blend"},
	"rationale":  {"rationale"},
}

// fields is one decoded pairing object with alias-aware accessors.
type fields struct {
	raw     map[string]json.RawMessage
	aliases map[string][]string
}

// lookup returns the first present, non-null value among the aliases of canonical.
func (f fields) lookup(canonical string) (json.RawMessage, bool) {
	keys, ok := f.aliases[canonical]
	if !ok {
		keys = []string{canonical}
	}
	for _, key := range keys {
		v, ok := f.raw[key]
		if !ok || isNull(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// String accepts JSON strings and numbers. Anything else reads as empty.
func (f fields) String(canonical string) string {
	v, ok := f.lookup(canonical)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// Bool accepts JSON booleans and the strings "true"/"false".
func (f fields) Bool(canonical string) bool {
	v, ok := f.lookup(canonical)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	s := f.String(canonical)
	b, _ = strconv.ParseBool(s)
	return b
}

// Rating accepts a number or a numeric string. Out-of-range values are dropped.
func (f fields) Rating(canonical string) *float64 {
	s := f.String(canonical)
	if s == "" {
		return nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || !pairing.ValidRating(r) {
		return nil
	}
	return &r
}

// normalizeDish maps one model-emitted pairing object onto DishPairing,
// defaulting whatever is missing.
func normalizeDish(raw map[string]json.RawMessage) pairing.DishPairing {
	f := fields{raw: raw, aliases: dishFieldKeys}

	course, err := pairing.ParseCourse(f.String("course"))
	if err != nil {
		course = pairing.CourseMain
	}

	return pairing.DishPairing{
		Dish:                  f.String("dish"),
		Description:           f.String("description"),
		Course:                course,
		MenuSection:           f.String("menuSection"),
		WineType:              f.String("wineType"),
		AltWineType:           f.String("altWineType"),
		BottleSuggestion:      f.String("bottleSuggestion"),
		Region:                f.String("region"),
		Producer:              f.String("producer"),
		Rationale:             f.String("rationale"),
		VivinoRating:          f.Rating("vivinoRating"),
		RetailPrice:           f.String("retailPrice"),
		RestaurantPriceGlass:  f.String("restaurantPriceGlass"),
		RestaurantPriceBottle: f.String("restaurantPriceBottle"),
		OutsidePriceRange:     f.Bool("outsidePriceRange"),
	}
}

func normalizeRecipePairing(raw map[string]json.RawMessage) pairing.RecipePairing {
	f := fields{raw: raw, aliases: recipeFieldKeys}
	return pairing.RecipePairing{
		WineType:   f.String("wineType"),
		Suggestion: f.String("suggestion"),
		Winery:     f.String("winery"),
		Blend:      f.String("blend"),
		Rationale:  f.String("rationale"),
	}
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
