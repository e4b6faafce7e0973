package api

import (
	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// match is a shelter selected for output, with its classification and
// optional distance from the query origin.
type match struct {
	shelter    *models.Shelter
	category   models.Category
	distanceKm *float64
}

func toGeoJSON(matches []match) FeatureCollection {
	features := make([]Feature, 0, len(matches))
	for _, m := range matches {
		features = append(features, toFeature(m))
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

func toFeature(m match) Feature {
	sh := m.shelter
	props := map[string]any{
		"id":       sh.ID,
		"name":     sh.Name,
		"address":  sh.Address,
		"types":    sh.Types,
		"category": m.category,
		"label":    classifier.Label(m.category),
		"color":    classifier.Color(m.category),
	}
	if m.distanceKm != nil {
		props["distance_km"] = *m.distanceKm
	}

	return Feature{
		Type: "Feature",
		ID:   sh.ID,
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{sh.Longitude, sh.Latitude},
		},
		Properties: props,
	}
}
