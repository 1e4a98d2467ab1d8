package pairing

// VivinoUnknown marks a specific bottle whose rating the model could not estimate.
const VivinoUnknown = -1.0

// DishPairing is one dish-to-wine recommendation from a restaurant menu.
type DishPairing struct {
	Dish                  string   `json:"dish"`
	Description           string   `json:"description"`
	Course                Course   `json:"course"`
	MenuSection           string   `json:"menuSection,omitempty"`
	WineType              string   `json:"wineType"`
	AltWineType           string   `json:"altWineType,omitempty"`
	BottleSuggestion      string   `json:"bottleSuggestion"`
	Region                string   `json:"region,omitempty"`
	Producer              string   `json:"producer,omitempty"`
	Rationale             string   `json:"rationale"`
	VivinoRating          *float64 `json:"vivinoRating,omitempty"`
	RetailPrice           string   `json:"retailPrice,omitempty"`
	RestaurantPriceGlass  string   `json:"restaurantPriceGlass,omitempty"`
	RestaurantPriceBottle string   `json:"restaurantPriceBottle,omitempty"`
	OutsidePriceRange     bool     `json:"outsidePriceRange"`
}

// RecipePairing is one wine recommendation for a home-cooked recipe.
type RecipePairing struct {
	WineType   string `json:"wineType"`
	Suggestion string `json:"suggestion"`
	Winery     string `json:"winery,omitempty"`
	Blend      string `json:"blend,omitempty"`
	Rationale  string `json:"rationale"`
}

// MenuPairingResult holds pairings in the order the model emitted them.
type MenuPairingResult struct {
	RestaurantName string        `json:"restaurantName,omitempty"`
	MenuCurrency   string        `json:"menuCurrency,omitempty"`
	Pairings       []DishPairing `json:"pairings"`
}

// RecipeResult holds the recognised recipe and its pairings.
type RecipeResult struct {
	RecipeName  string          `json:"recipeName"`
	Description string          `json:"description"`
	Pairings    []RecipePairing `json:"pairings"`
}

// ValidRating reports whether r is a usable Vivino rating or the unknown sentinel.
func ValidRating(r float64) bool {
	return r == VivinoUnknown || (r >= 1.0 && r <= 5.0)
}
