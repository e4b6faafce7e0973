package models

import "strings"

type Category string

const (
	CategoryTsunami Category = "tsunami"
	CategoryFlood   Category = "flood"
	CategoryGeneral Category = "general"
)

// Categories lists every category in legend order.
var Categories = []Category{CategoryGeneral, CategoryFlood, CategoryTsunami}

func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryTsunami:
		return CategoryTsunami, true
	case CategoryFlood:
		return CategoryFlood, true
	case CategoryGeneral:
		return CategoryGeneral, true
	default:
		return "", false
	}
}
