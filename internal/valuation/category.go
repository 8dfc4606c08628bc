package valuation

import "strings"

// Category is a coarse item grouping used when the pricing vendor does not
// supply one. It is derived purely from the item's own text, so it stays
// testable without network access and independent of any vendor schema.
type Category string

const (
	CategoryCurrency  Category = "currency"
	CategoryWaystone  Category = "waystone"
	CategoryGem       Category = "gem"
	CategoryJewel     Category = "jewel"
	CategoryEssence   Category = "essence"
	CategoryCatalyst  Category = "catalyst"
	CategoryRune      Category = "rune"
	CategoryOmen      Category = "omen"
	CategoryTablet    Category = "tablet"
	CategoryFragment  Category = "fragment"
	CategoryUnique    Category = "unique"
	CategoryEquipment Category = "equipment"
	CategoryUnknown   Category = "unknown"
)

// currencyNames are exact base names that always classify as currency.
var currencyNames = map[string]struct{}{
	"Chaos Orb":           {},
	"Exalted Orb":         {},
	"Divine Orb":          {},
	"Mirror of Kalandra":  {},
	"Orb of Alchemy":      {},
	"Orb of Annulment":    {},
	"Orb of Augmentation": {},
	"Orb of Chance":       {},
	"Orb of Transmutation": {},
	"Regal Orb":           {},
	"Vaal Orb":            {},
	"Chance Shard":        {},
	"Regal Shard":         {},
	"Artificer's Orb":     {},
	"Gemcutter's Prism":   {},
	"Glassblower's Bauble": {},
	"Blacksmith's Whetstone": {},
	"Armourer's Scrap":    {},
}

// markers are checked in order against the combined name text; the first
// match wins.
var markers = []struct {
	substr string
	cat    Category
}{
	{"Waystone", CategoryWaystone},
	{"Tablet", CategoryTablet},
	{"Essence", CategoryEssence},
	{"Catalyst", CategoryCatalyst},
	{"Omen of", CategoryOmen},
	{"Rune", CategoryRune},
	{"Soul Core", CategoryRune},
	{"Skill Gem", CategoryGem},
	{"Support Gem", CategoryGem},
	{"Spirit Gem", CategoryGem},
	{"Jewel", CategoryJewel},
	{"Splinter", CategoryFragment},
	{"Simulacrum", CategoryFragment},
	{"Fragment", CategoryFragment},
	{"Barya", CategoryFragment},
	{"Ultimatum", CategoryFragment},
	{"Orb", CategoryCurrency},
	{"Shard", CategoryCurrency},
	{"Coinage", CategoryCurrency},
	{"Gold", CategoryCurrency},
}

// Categorize guesses a category from an item's display name and base type.
// It is a pure function over the input strings.
func Categorize(name, baseType string) Category {
	base := strings.TrimSpace(baseType)
	if _, ok := currencyNames[base]; ok {
		return CategoryCurrency
	}

	text := strings.TrimSpace(name + " " + baseType)
	if text == "" {
		return CategoryUnknown
	}
	for _, m := range markers {
		if strings.Contains(text, m.substr) {
			return m.cat
		}
	}
	if name != "" && baseType != "" && name != baseType {
		// Named items on a plain base read as uniques.
		return CategoryUnique
	}
	return CategoryEquipment
}
