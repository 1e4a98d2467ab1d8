package pairing

import (
	"fmt"
	"math"
	"strings"
)

// TaskType selects the pairing flow.
type TaskType string

const (
	TaskMenu   TaskType = "menu"
	TaskRecipe TaskType = "recipe"
)

// Course is a menu course the user wants pairings for.
type Course string

const (
	CourseStarter Course = "starter"
	CourseMain    Course = "main"
	CourseDessert Course = "dessert"
)

// AllCourses lists courses in menu order.
var AllCourses = []Course{CourseStarter, CourseMain, CourseDessert}

// DefaultCurrency is used when the client does not assert one.
const DefaultCurrency = "USD"

// ParseCourse accepts singular and plural course names.
func ParseCourse(name string) (Course, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "starter", "starters", "appetizer", "appetizers":
		return CourseStarter, nil
	case "main", "mains":
		return CourseMain, nil
	case "dessert", "desserts":
		return CourseDessert, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCourse, name)
}

// ParseCourses parses a list of course names, dropping duplicates.
func ParseCourses(names []string) ([]Course, error) {
	courses := make([]Course, 0, len(names))
	for _, name := range names {
		c, err := ParseCourse(name)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// PairingOptions are the user-selected options for one request.
type PairingOptions struct {
	Currency       string   `json:"currency"`
	Courses        []Course `json:"courses"`
	MinPrice       *float64 `json:"minPrice,omitempty"`
	MaxPrice       *float64 `json:"maxPrice,omitempty"`
	EstimatePrices bool     `json:"estimatePrices"`
	TargetCountry  string   `json:"targetCountry,omitempty"`
}

// Validate checks the cross-field price rule and simple field constraints.
func (o PairingOptions) Validate() error {
	if o.Currency != "" && !isCurrencyCode(o.Currency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, o.Currency)
	}
	for _, c := range o.Courses {
		if _, err := ParseCourse(string(c)); err != nil {
			return err
		}
	}
	if !finite(o.MinPrice) || !finite(o.MaxPrice) {
		return ErrNonFinitePrice
	}
	if (o.MinPrice != nil && *o.MinPrice < 0) || (o.MaxPrice != nil && *o.MaxPrice < 0) {
		return ErrNegativePrice
	}
	if o.MinPrice != nil && o.MaxPrice != nil && *o.MinPrice > *o.MaxPrice {
		return fmt.Errorf("%w: %g > %g", ErrInvalidPriceRange, *o.MinPrice, *o.MaxPrice)
	}
	return nil
}

// WithDefaults returns a copy with the fallback currency set and, for the
// menu flow, the main course always included. Course aliases such as
// "starters" are canonicalised; unknown names are dropped, since Validate
// rejects them first. Courses come back in menu order.
func (o PairingOptions) WithDefaults(task TaskType) PairingOptions {
	out := o
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	out.Currency = strings.ToUpper(out.Currency)

	selected := make(map[Course]bool, len(o.Courses)+1)
	for _, c := range o.Courses {
		if canonical, err := ParseCourse(string(c)); err == nil {
			selected[canonical] = true
		}
	}
	if task == TaskMenu {
		selected[CourseMain] = true
	}
	out.Courses = nil
	for _, c := range AllCourses {
		if selected[c] {
			out.Courses = append(out.Courses, c)
		}
	}
	return out
}

// Includes reports whether the course was selected.
func (o PairingOptions) Includes(c Course) bool {
	for _, selected := range o.Courses {
		if selected == c {
			return true
		}
	}
	return false
}

// HasPriceRange reports whether any price bound is set.
func (o PairingOptions) HasPriceRange() bool {
	return o.MinPrice != nil || o.MaxPrice != nil
}

func finite(p *float64) bool {
	return p == nil || !(math.IsNaN(*p) || math.IsInf(*p, 0))
}

// Price returns a pointer for optional price fields.
func Price(v float64) *float64 {
	return &v
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
