package model

// DefaultCity is applied when no city has ever been chosen.
const DefaultCity = "Seattle"

// DefaultIgnoredBrands hides the self-checkout pseudo-brands that carry no
// real menu items.
var DefaultIgnoredBrands = []string{
	"Barcoded Items",
	"SCAN & PAY",
	"Barcoder",
	"Scan & Pay",
	"Scan and Pay",
}

// Preferences is the single per-device preferences record. It is persisted as
// one JSON blob and fully overwritten on every save.
type Preferences struct {
	SelectedBuildings []string `json:"selectedBuildings"`
	LastSearch        string   `json:"lastSearch,omitempty"`
	IgnoredBrands     []string `json:"ignoredBrands"`
	MinPrice          float64  `json:"minPrice"`
	SelectedCity      string   `json:"selectedCity"`
}

// DefaultPreferences returns the documented defaults used whenever the stored
// record is missing or unreadable.
func DefaultPreferences() Preferences {
	ignored := make([]string, len(DefaultIgnoredBrands))
	copy(ignored, DefaultIgnoredBrands)
	return Preferences{
		SelectedBuildings: []string{},
		IgnoredBrands:     ignored,
		MinPrice:          0,
		SelectedCity:      DefaultCity,
	}
}
