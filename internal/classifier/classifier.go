// Package classifier derives the display category of a shelter from its hazard types.
//
// Priority is fixed: a shelter rated for tsunami is a tsunami shelter even when it is
// also rated for flood, a flood shelter otherwise, and a general shelter when neither
// applies. Unknown labels never change the outcome.
package classifier

import (
	"strings"

	"github.com/mr1hm/go-evac-shelters/internal/models"
)

const (
	TypeTsunami     = "tsunami"
	TypeFlood       = "flood"
	TypeEarthquake  = "earthquake"
	TypeStormSurge  = "storm_surge"
	TypeLandslide   = "landslide"
	TypeFire        = "fire"
	TypeInlandFlood = "inland_flood"
	TypeVolcano     = "volcano"
)

// aliases maps labels found in Japanese designated-shelter open data to canonical types.
var aliases = map[string]string{
	"津波":           TypeTsunami,
	"洪水":           TypeFlood,
	"地震":           TypeEarthquake,
	"高潮":           TypeStormSurge,
	"土砂災害":         TypeLandslide,
	"崖崩れ・土石流及び地滑り": TypeLandslide,
	"がけ崩れ・土石流及び地滑り": TypeLandslide,
	"大規模な火事":        TypeFire,
	"内水氾濫":          TypeInlandFlood,
	"火山現象":          TypeVolcano,
	"storm surge":   TypeStormSurge,
	"inland flood":  TypeInlandFlood,
}

// NormalizeType trims and lowercases a hazard label and resolves known aliases.
// It returns "" for blank input.
func NormalizeType(label string) string {
	t := strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := aliases[t]; ok {
		return canonical
	}
	return t
}

// Classify maps a hazard type list to exactly one category. It accepts raw or
// canonical labels and is defined for every input, including nil.
func Classify(types []string) models.Category {
	var flood bool
	for _, t := range types {
		switch NormalizeType(t) {
		case TypeTsunami:
			return models.CategoryTsunami
		case TypeFlood:
			flood = true
		}
	}
	if flood {
		return models.CategoryFlood
	}
	return models.CategoryGeneral
}

// Count tallies shelters per category. Every category is present in the result.
func Count(shelters []models.Shelter) map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		counts[c] = 0
	}
	for i := range shelters {
		counts[Classify(shelters[i].Types)]++
	}
	return counts
}
