package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

// addendum is one independently gated fragment of the user suffix.
type addendum struct {
	name    string
	applies func(Inputs) bool
	render  func(Inputs) string
}

func always(Inputs) bool { return true }

// menuAddenda are evaluated in this order. The output format stays last.
var menuAddenda = []addendum{
	{name: "courses", applies: always, render: renderCourses},
	{name: "currency", applies: always, render: renderCurrency},
	{name: "wine_list", applies: hasWineList, render: renderWineList},
	{name: "price_range", applies: hasPriceRange, render: renderPriceRange},
	{name: "estimate_prices", applies: estimatesPrices, render: renderEstimatePrices},
	{name: "menu_format", applies: always, render: func(Inputs) string { return menuOutputFormat }},
}

var recipeAddenda = []addendum{
	{name: "recipe_task", applies: always, render: func(Inputs) string { return recipeTask }},
	{name: "locale", applies: always, render: renderLocale},
	{name: "recipe_format", applies: always, render: func(Inputs) string { return recipeOutputFormat }},
}

func hasWineList(in Inputs) bool { return in.HasWineList }

func hasPriceRange(in Inputs) bool { return in.Options.HasPriceRange() }

// estimatesPrices never applies alongside a wine list, whose prices are read rather than estimated.
func estimatesPrices(in Inputs) bool { return in.Options.EstimatePrices && !in.HasWineList }

var courseLabels = map[pairing.Course]string{
	pairing.CourseStarter: "STARTERS",
	pairing.CourseMain:    "MAINS",
	pairing.CourseDessert: "DESSERTS",
}

var courseExclusions = map[pairing.Course]string{
	pairing.CourseStarter: "starters, appetizers, antipasti, mezze, tapas, soups and salads",
	pairing.CourseMain:    "main courses",
	pairing.CourseDessert: "desserts, cheese boards and petit fours",
}

func renderCourses(in Inputs) string {
	var include, exclude []string
	for _, c := range pairing.AllCourses {
		if in.Options.Includes(c) {
			include = append(include, courseLabels[c])
		} else {
			exclude = append(exclude, courseExclusions[c])
		}
	}

	var b strings.Builder
	b.WriteString("COURSES TO EXTRACT: ")
	b.WriteString(strings.Join(include, ", "))
	b.WriteString(". Recommend a wine for every dish in these courses.")
	if len(exclude) > 0 {
		b.WriteString("\nYou must NOT include: ")
		b.WriteString(strings.Join(exclude, "; "))
		b.WriteString(".")
	}
	return b.String()
}

func renderCurrency(in Inputs) string {
	c := in.Options.Currency
	return fmt.Sprintf(`CURRENCY: Detect the currency from the menu prices (symbols such as $, £ or €, or written currency codes). Quote every price in your response in the MENU's currency and set "menuCurrency" to its ISO code (for example "GBP", "EUR", "AUD"). If the menu shows no currency, use %s and set "menuCurrency" to "%s".`, c, c)
}

const wineListText = `WINE LIST: The restaurant's wine list is also provided. Recommend ONLY wines that appear on it and never suggest a wine that is not listed. For each dish pick the best match FROM the list, and put the wine's name and producer exactly as listed in "suggestion", without the region. Copy "glassPrice" and "bottlePrice" verbatim from the list when shown. Every recommendation is now a specific bottle, so "vivino" (your best estimate, 1.0-5.0) and "retail" (typical retail price with currency symbol) are required.`

func renderWineList(Inputs) string { return wineListText }

func renderPriceRange(in Inputs) string {
	o := in.Options
	currency := o.Currency

	var bounds string
	switch {
	case o.MinPrice != nil && o.MaxPrice != nil:
		bounds = fmt.Sprintf("between %s and %s %s", formatPrice(*o.MinPrice), formatPrice(*o.MaxPrice), currency)
	case o.MinPrice != nil:
		bounds = fmt.Sprintf("of at least %s %s, with no upper limit", formatPrice(*o.MinPrice), currency)
	default:
		bounds = fmt.Sprintf("of at most %s %s, with no lower limit", formatPrice(*o.MaxPrice), currency)
	}

	if in.HasWineList {
		return fmt.Sprintf(`PRICE RANGE: The user wants a BOTTLE price %s. If the wine list uses a different currency, first convert the user's range into the list's currency with approximate exchange rates, then filter with the converted values. Filter on bottle price only and ignore glass prices. For each dish choose the best pairing among wines inside the range and set "outOfRange" to false. Only when NO wine on the list falls inside the range for a dish, recommend the closest-priced wine and set "outOfRange" to true. Never drop a dish because of price.`, bounds)
	}
	return fmt.Sprintf(`PRICE RANGE: The user's retail budget is a bottle price %s. Recommend wines that sit comfortably inside this budget at retail, converting currencies with approximate rates where needed. Only go outside the budget when no suitable pairing exists within it, and then set "outOfRange" to true.`, bounds)
}

const estimatePricesText = `PRICE ESTIMATES: No wine list was provided, but the user wants ratings and prices. A rating or price cannot be attached to a grape variety, so for every dish recommend a SPECIFIC, widely available bottle and name its producer (for example "Cloudy Bay Sauvignon Blanc" by Cloudy Bay). This overrides the rule about keeping recommendations broad. For that bottle you MUST include:
- "vivino": your best estimate of its Vivino community rating, 1.0-5.0
- "retail": its estimated retail price with currency symbol in the user's local market`

func renderEstimatePrices(Inputs) string { return estimatePricesText }

const recipeTask = `TASK: The material above is a recipe. Based on its main ingredients, cooking method and flavour profile, recommend wines to serve with the finished dish at home.`

func renderLocale(in Inputs) string {
	country := strings.TrimSpace(in.Options.TargetCountry)
	if country == "" {
		return `LOCALE: The user is an international user. Recommend varieties and styles that are easy to find in most markets, and choose wineries whose bottles are stocked internationally by mainstream supermarkets and wine retailers.`
	}
	return fmt.Sprintf(`LOCALE: The user is in %s. Recommend varieties and styles that are widely available there, and choose wineries whose bottles can realistically be bought in a mainstream supermarket or wine retailer in %s.`, country, country)
}

const menuOutputFormat = `OUTPUT FORMAT: Reply with raw JSON only, with no markdown and no code fences. Omit any field whose value would be null rather than writing null.
{
  "restaurantName": "restaurant name, omit if not found",
  "menuCurrency": "ISO code of the menu's prices, omit if not found",
  "pairings": [
    {
      "dish": "dish title exactly as on the menu, 1-5 words, original language, no ingredients or prices",
      "desc": "1-2 sentences in English on what the dish is, key ingredients and preparation, no prices",
      "course": "starter | main | dessert",
      "menuSection": "menu name when the site has several distinct menus or meal periods (e.g. 'Lunch', 'Dinner', 'Tasting Menu'), exactly as named; omit if there is only one",
      "wine": "grape variety or wine style",
      "altWine": "a different mainstream alternative, omit if none",
      "suggestion": "without a wine list: a 2-4 word style descriptor with no grape names (e.g. 'Dry White', 'Bold Full-Bodied Red'); with a specific bottle: the wine name without its region",
      "region": "wine region as shown on the wine list, omit otherwise",
      "producer": "winery name when recommending a specific bottle, omit otherwise",
      "rationale": "1-2 sentences on why the wine suits the dish's main component",
      "vivino": "number 1.0-5.0 for a specific bottle, -1 if unknown; omit when recommending a style",
      "retail": "retail price with currency symbol for a specific bottle, 'Not found' if unknown; omit when recommending a style",
      "glassPrice": "per-glass price from the wine list, omit if not listed",
      "bottlePrice": "per-bottle price from the wine list, omit if not listed",
      "outOfRange": true
    }
  ]
}
Include "outOfRange" only when it is true.`

const recipeOutputFormat = `OUTPUT FORMAT: Reply with raw JSON only, with no markdown and no code fences.
{
  "recipeName": "the recipe's name, or null if this is not a recipe",
  "description": "1-2 sentences on the finished dish: main flavours, textures and cooking style",
  "pairings": [
    {
      "wineType": "grape variety or wine style",
      "suggestion": "2-4 word style descriptor with no grape names (e.g. 'Crisp Dry White')",
      "winery": "a well-regarded, widely stocked producer of this style, no vintage",
      "blend": "the specific wine or cuvée from that producer (e.g. 'Estate Pinot Noir'), no vintage",
      "rationale": "1-2 sentences for a curious home cook on how the wine's acidity, tannin or sweetness meets the dish"
    }
  ]
}`

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
