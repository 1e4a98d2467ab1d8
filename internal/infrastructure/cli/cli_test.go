package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/inbound"
	"github.com/sommekat/sommelier/pkg/errors"
)

type fakeService struct {
	menuCmd   *inbound.MenuPairingCommand
	recipeCmd *inbound.RecipePairingCommand
	err       error
}

func (f *fakeService) PairMenu(_ context.Context, cmd inbound.MenuPairingCommand) (*pairing.MenuPairingResult, error) {
	f.menuCmd = &cmd
	if f.err != nil {
		return nil, f.err
	}
	return &pairing.MenuPairingResult{
		RestaurantName: "Bistro",
		Pairings:       []pairing.DishPairing{{Dish: "Duck", Course: pairing.CourseMain, WineType: "Pinot Noir"}},
	}, nil
}

func (f *fakeService) PairRecipe(_ context.Context, cmd inbound.RecipePairingCommand) (*pairing.RecipeResult, error) {
	f.recipeCmd = &cmd
	if f.err != nil {
		return nil, f.err
	}
	return &pairing.RecipeResult{RecipeName: "Risotto"}, nil
}

type harness struct {
	service    *fakeService
	configPath string
	released   int
	out        *bytes.Buffer
}

func execute(t *testing.T, svc *fakeService, args ...string) (*harness, error) {
	t.Helper()
	h := &harness{service: svc, out: new(bytes.Buffer)}

	root := NewRootCommand(func(_ context.Context, configPath string) (inbound.PairingService, func(), error) {
		h.configPath = configPath
		return svc, func() { h.released++ }, nil
	})
	root.SetOut(h.out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)

	return h, root.Execute()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestMenuCommand_URL(t *testing.T) {
	h, err := execute(t, &fakeService{},
		"menu", "https://bistro.test",
		"--config", "/etc/sommelier/config.yaml",
		"--currency", "eur",
		"--course", "starters,dessert",
		"--max-price", "60",
		"--wine-url", "https://bistro.test/wines",
	)
	require.NoError(t, err)

	cmd := h.service.menuCmd
	require.NotNil(t, cmd)
	assert.Equal(t, pairing.URLSource("https://bistro.test"), cmd.Food)
	assert.Equal(t, pairing.URLSource("https://bistro.test/wines"), cmd.Wine)
	assert.Equal(t, "EUR", cmd.Options.Currency)
	assert.Equal(t, []pairing.Course{pairing.CourseStarter, pairing.CourseDessert}, cmd.Options.Courses)
	assert.Nil(t, cmd.Options.MinPrice)
	require.NotNil(t, cmd.Options.MaxPrice)
	assert.Equal(t, 60.0, *cmd.Options.MaxPrice)

	assert.Equal(t, "/etc/sommelier/config.yaml", h.configPath)
	assert.Equal(t, 1, h.released)

	var result pairing.MenuPairingResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &result))
	assert.Equal(t, "Bistro", result.RestaurantName)
	require.Len(t, result.Pairings, 1)
	assert.Equal(t, "Pinot Noir", result.Pairings[0].WineType)

	h, err = execute(t, &fakeService{}, "menu", "--url", "https://a.test")
	require.NoError(t, err)
	require.NotNil(t, h.service.menuCmd)
	assert.Equal(t, pairing.URLSource("https://a.test"), h.service.menuCmd.Food)
}

func TestMenuCommand_Files(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	photo := writeFile(t, "page1.jpg", []byte{0xff, 0xd8, 0xff, 0xe0})
	scan := writeFile(t, "page2", png)
	wines := writeFile(t, "wines.PDF", []byte("%PDF-1.4\n"))

	h, err := execute(t, &fakeService{},
		"menu", "-f", photo, "--file", scan,
		"--wine-file", wines,
		"--min-price", "0",
		"--estimate-prices",
	)
	require.NoError(t, err)

	cmd := h.service.menuCmd
	require.NotNil(t, cmd)
	require.Len(t, cmd.Food.Files, 2)
	assert.Empty(t, cmd.Food.URL)
	assert.Equal(t, "page1.jpg", cmd.Food.Files[0].Name)
	assert.Equal(t, "image/jpeg", cmd.Food.Files[0].MimeType)
	assert.Equal(t, "image/png", cmd.Food.Files[1].MimeType)
	assert.Equal(t, png, cmd.Food.Files[1].Data)

	require.Len(t, cmd.Wine.Files, 1)
	assert.Equal(t, pairing.MimePDF, cmd.Wine.Files[0].MimeType)

	require.NotNil(t, cmd.Options.MinPrice)
	assert.Zero(t, *cmd.Options.MinPrice)
	assert.True(t, cmd.Options.EstimatePrices)
}

func TestMenuCommand_Errors(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		h, err := execute(t, &fakeService{}, "menu")
		assert.ErrorContains(t, err, "provide a menu URL")
		assert.Zero(t, h.released)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, &fakeService{}, "menu", "--file", filepath.Join(t.TempDir(), "nope.jpg"))
		assert.ErrorContains(t, err, "failed to read")
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := execute(t, &fakeService{}, "menu", "https://a.test", "--course", "cheese")
		assert.ErrorIs(t, err, pairing.ErrUnknownCourse)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		h, err := execute(t, &fakeService{err: errors.NewNotRecognizedError("menu")}, "menu", "https://a.test")
		assert.True(t, errors.Is(err, errors.CodeNotRecognized))
		assert.Equal(t, 1, h.released)
		assert.Empty(t, h.out.String())
	})

	t.Run("too many args", func(t *testing.T) {
		_, err := execute(t, &fakeService{}, "menu", "https://a.test", "https://b.test")
		assert.Error(t, err)
	})
}

func TestRecipeCommand(t *testing.T) {
	h, err := execute(t, &fakeService{}, "recipe", "https://recipes.test/risotto", "--country", " Australia ")
	require.NoError(t, err)

	require.NotNil(t, h.service.recipeCmd)
	assert.Equal(t, inbound.RecipePairingCommand{
		Source:        pairing.URLSource("https://recipes.test/risotto"),
		TargetCountry: "Australia",
	}, *h.service.recipeCmd)
	assert.Contains(t, h.out.String(), `"recipeName": "Risotto"`)

	h, err = execute(t, &fakeService{}, "recipe", "--url", "https://recipes.test/tagine")
	require.NoError(t, err)
	require.NotNil(t, h.service.recipeCmd)
	assert.Equal(t, pairing.URLSource("https://recipes.test/tagine"), h.service.recipeCmd.Source)

	_, err = execute(t, &fakeService{}, "recipe")
	assert.ErrorContains(t, err, "provide a recipe URL")
}

func TestFactoryErrorIsReturned(t *testing.T) {
	root := NewRootCommand(func(context.Context, string) (inbound.PairingService, func(), error) {
		return nil, nil, assert.AnError
	})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"recipe", "https://r.test"})

	assert.ErrorIs(t, root.Execute(), assert.AnError)
}
