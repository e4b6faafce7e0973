package classifier

import "github.com/mr1hm/go-evac-shelters/internal/models"

const (
	ColorTsunami = "#ef4444"
	ColorFlood   = "#f59e0b"
	ColorGeneral = "#22c55e"
)

type LegendEntry struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Color    string          `json:"color"`
}

// Color returns the marker colour for a category. Unknown categories get the general colour.
func Color(c models.Category) string {
	switch c {
	case models.CategoryTsunami:
		return ColorTsunami
	case models.CategoryFlood:
		return ColorFlood
	default:
		return ColorGeneral
	}
}

func Label(c models.Category) string {
	switch c {
	case models.CategoryTsunami:
		return "津波対応"
	case models.CategoryFlood:
		return "洪水対応"
	default:
		return "一般避難所"
	}
}

func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(models.Categories))
	for _, c := range models.Categories {
		entries = append(entries, LegendEntry{Category: c, Label: Label(c), Color: Color(c)})
	}
	return entries
}
