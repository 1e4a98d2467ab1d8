// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

// PairingService defines the wine pairing use cases.
// HTTP handlers and the CLI drive the pipeline through this port.
type PairingService interface {
	// PairMenu recommends a wine for each selected dish on a restaurant menu.
	PairMenu(ctx context.Context, cmd MenuPairingCommand) (*pairing.MenuPairingResult, error)

	// PairRecipe recommends wines for a home-cooked recipe.
	PairRecipe(ctx context.Context, cmd RecipePairingCommand) (*pairing.RecipeResult, error)
}

// MenuPairingCommand contains the food source, an optional wine list and the user's options
type MenuPairingCommand struct {
	Food    pairing.Source
	Wine    pairing.Source // zero value when no wine list was supplied
	Options pairing.PairingOptions
}

// RecipePairingCommand contains a recipe source and the user's country, if known
type RecipePairingCommand struct {
	Source        pairing.Source
	TargetCountry string
}
