package ingest

// Limits bound crawling and text size.
type Limits struct {
	MaxLevel1        int // menu links followed from the homepage
	MaxSubpages      int // level-1 plus level-2 pages fetched
	MinSubpageChars  int // shorter subpages are left out of the combined text
	MenuTextLimit    int // characters of combined website text
	RecipeTextLimit  int
	RecipeMinChars   int // shorter recipe pages fail with EmptyExtraction
	MaxFileConverter int // concurrent file conversions
}

// DefaultLimits returns the production crawl limits.
func DefaultLimits() Limits {
	return Limits{
		MaxLevel1:        8,
		MaxSubpages:      10,
		MinSubpageChars:  100,
		MenuTextLimit:    80000,
		RecipeTextLimit:  25000,
		RecipeMinChars:   100,
		MaxFileConverter: 4,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxLevel1 <= 0 {
		l.MaxLevel1 = d.MaxLevel1
	}
	if l.MaxSubpages <= 0 {
		l.MaxSubpages = d.MaxSubpages
	}
	if l.MinSubpageChars <= 0 {
		l.MinSubpageChars = d.MinSubpageChars
	}
	if l.MenuTextLimit <= 0 {
		l.MenuTextLimit = d.MenuTextLimit
	}
	if l.RecipeTextLimit <= 0 {
		l.RecipeTextLimit = d.RecipeTextLimit
	}
	if l.RecipeMinChars <= 0 {
		l.RecipeMinChars = d.RecipeMinChars
	}
	if l.MaxFileConverter <= 0 {
		l.MaxFileConverter = d.MaxFileConverter
	}
	return l
}
