package advisor

import "fmt"

// Category is the recommendation list chosen for a query.
type Category int

const (
	CategoryEnergyPolicy Category = iota + 1
	CategoryFuelTransition
	CategoryGeneralEnergy
	CategoryGeographic
	CategoryReduction
	CategoryCompliance
	CategoryTechnology
	CategoryFallback
)

// Categories lists every category in cascade order.
var Categories = []Category{
	CategoryEnergyPolicy,
	CategoryFuelTransition,
	CategoryGeneralEnergy,
	CategoryGeographic,
	CategoryReduction,
	CategoryCompliance,
	CategoryTechnology,
	CategoryFallback,
}

func (c Category) String() string {
	switch c {
	case CategoryEnergyPolicy:
		return "energy_policy"
	case CategoryFuelTransition:
		return "fuel_transition"
	case CategoryGeneralEnergy:
		return "general_energy"
	case CategoryGeographic:
		return "geographic"
	case CategoryReduction:
		return "reduction"
	case CategoryCompliance:
		return "compliance"
	case CategoryTechnology:
		return "technology"
	case CategoryFallback:
		return "fallback"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// IsPolicy reports whether the category carries regulatory guidance.
func (c Category) IsPolicy() bool {
	return c == CategoryEnergyPolicy || c == CategoryCompliance
}

// ParseCategory maps a label produced by String back to its category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
