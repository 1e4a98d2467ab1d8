package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

const (
	wineListHeading  = "WINE LIST:"
	priceHeading     = "PRICE RANGE:"
	estimatesHeading = "PRICE ESTIMATES:"
)

func menuInputs(opts pairing.PairingOptions, wine bool) Inputs {
	return Inputs{Options: opts.WithDefaults(pairing.TaskMenu), HasWineList: wine}
}

func TestBuild_MenuGatingMatrix(t *testing.T) {
	for _, wine := range []bool{false, true} {
		for _, priced := range []bool{false, true} {
			for _, estimate := range []bool{false, true} {
				name := fmt.Sprintf("wine=%t/price=%t/estimate=%t", wine, priced, estimate)
				t.Run(name, func(t *testing.T) {
					opts := pairing.PairingOptions{EstimatePrices: estimate}
					if priced {
						opts.MinPrice = pairing.Price(20)
						opts.MaxPrice = pairing.Price(60)
					}

					p := Build(pairing.TaskMenu, menuInputs(opts, wine))

					assert.Equal(t, wine, strings.Contains(p.UserSuffix, wineListHeading))
					assert.Equal(t, priced, strings.Contains(p.UserSuffix, priceHeading))
					assert.Equal(t, estimate && !wine, strings.Contains(p.UserSuffix, estimatesHeading))
					assert.Equal(t, menuSystemPrompt, p.System)
					assert.True(t, strings.HasPrefix(p.UserSuffix, "COURSES TO EXTRACT:"))
					assert.True(t, strings.HasSuffix(p.UserSuffix, menuOutputFormat))
					assert.Equal(t, "menu_format", p.Addenda[len(p.Addenda)-1])
				})
			}
		}
	}
}

func TestBuild_AddendaOnlyAppend(t *testing.T) {
	base := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{}, false))
	full := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{MaxPrice: pairing.Price(50)}, true))

	assert.Equal(t, []string{"courses", "currency", "menu_format"}, base.Addenda)
	assert.Equal(t, []string{"courses", "currency", "wine_list", "price_range", "menu_format"}, full.Addenda)

	baseParts := strings.Split(base.UserSuffix, addendumSeparator+"OUTPUT FORMAT:")
	require.Len(t, baseParts, 2)
	assert.True(t, strings.HasPrefix(full.UserSuffix, baseParts[0]))
}

func TestBuild_CourseFilter(t *testing.T) {
	p := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{Courses: []pairing.Course{pairing.CourseDessert}}, false))

	assert.Contains(t, p.UserSuffix, "COURSES TO EXTRACT: MAINS, DESSERTS.")
	assert.Contains(t, p.UserSuffix, "You must NOT include: starters")
	assert.NotContains(t, p.UserSuffix, "petit fours")

	all := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{Courses: pairing.AllCourses}, false))
	assert.Contains(t, all.UserSuffix, "COURSES TO EXTRACT: STARTERS, MAINS, DESSERTS.")
	assert.NotContains(t, all.UserSuffix, "must NOT include")
}

func TestBuild_CurrencyFallback(t *testing.T) {
	p := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{Currency: "AUD"}, false))
	assert.Contains(t, p.UserSuffix, `use AUD and set "menuCurrency" to "AUD"`)

	def := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{}, false))
	assert.Contains(t, def.UserSuffix, `use USD and set "menuCurrency" to "USD"`)
}

func TestBuild_PriceBounds(t *testing.T) {
	tests := []struct {
		name string
		opts pairing.PairingOptions
		want string
	}{
		{"both", pairing.PairingOptions{MinPrice: pairing.Price(25), MaxPrice: pairing.Price(70.5)}, "between 25 and 70.5 GBP"},
		{"min only", pairing.PairingOptions{MinPrice: pairing.Price(40)}, "at least 40 GBP, with no upper limit"},
		{"max only", pairing.PairingOptions{MaxPrice: pairing.Price(30)}, "at most 30 GBP, with no lower limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Currency = "GBP"

			withList := Build(pairing.TaskMenu, menuInputs(tt.opts, true))
			withoutList := Build(pairing.TaskMenu, menuInputs(tt.opts, false))

			assert.Contains(t, withList.UserSuffix, tt.want)
			assert.Contains(t, withList.UserSuffix, "convert the user's range")
			assert.Contains(t, withoutList.UserSuffix, tt.want)
			assert.Contains(t, withoutList.UserSuffix, "retail budget")
		})
	}
}

func TestBuild_SystemPromptIsStable(t *testing.T) {
	a := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{}, false))
	b := Build(pairing.TaskMenu, menuInputs(pairing.PairingOptions{
		Currency:       "EUR",
		Courses:        pairing.AllCourses,
		MinPrice:       pairing.Price(10),
		EstimatePrices: true,
	}, true))

	assert.Equal(t, a.System, b.System)
	assert.NotEqual(t, a.UserSuffix, b.UserSuffix)
	assert.Equal(t, System(pairing.TaskMenu), a.System)
}

func TestBuild_Recipe(t *testing.T) {
	withCountry := Build(pairing.TaskRecipe, Inputs{Options: pairing.PairingOptions{TargetCountry: "New Zealand"}})
	international := Build(pairing.TaskRecipe, Inputs{})

	assert.Equal(t, recipeSystemPrompt, withCountry.System)
	assert.Contains(t, withCountry.System, "SommeKat")
	assert.Contains(t, withCountry.UserSuffix, "The user is in New Zealand.")
	assert.Contains(t, international.UserSuffix, "international user")
	assert.Equal(t, []string{"recipe_task", "locale", "recipe_format"}, international.Addenda)
	assert.True(t, strings.HasSuffix(international.UserSuffix, recipeOutputFormat))
	assert.NotContains(t, international.UserSuffix, "COURSES TO EXTRACT")
}

func TestBuild_IsDeterministic(t *testing.T) {
	in := menuInputs(pairing.PairingOptions{Courses: []pairing.Course{pairing.CourseStarter}, MaxPrice: pairing.Price(80)}, true)

	assert.Equal(t, Build(pairing.TaskMenu, in), Build(pairing.TaskMenu, in))
}
