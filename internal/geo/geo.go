// Package geo holds coordinate validation, distance and map-region helpers.
package geo

import (
	"math"

	"github.com/mr1hm/go-evac-shelters/internal/models"
)

const earthRadiusKm = 6371.0

// Region is a map viewport: a center plus the latitude/longitude span it shows.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// DefaultRegion is shown when no location fix is available.
var DefaultRegion = Region{
	Latitude:       34.7666,
	Longitude:      135.6281,
	LatitudeDelta:  0.0922,
	LongitudeDelta: 0.0421,
}

// Valid reports whether lat/lon are finite and inside WGS-84 ranges.
func Valid(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CenterOn returns base recentred on fix. A nil or invalid fix leaves base unchanged.
func CenterOn(base Region, fix *models.Coordinates) Region {
	if fix == nil || !Valid(fix.Latitude, fix.Longitude) {
		return base
	}
	base.Latitude = fix.Latitude
	base.Longitude = fix.Longitude
	return base
}

// DistanceKm is the haversine great-circle distance between a and b.
func DistanceKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
