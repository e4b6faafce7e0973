package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mr1hm/go-evac-shelters/internal/models"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid(0, 0))
	assert.True(t, Valid(-90, 180))
	assert.True(t, Valid(90, -180))
	assert.False(t, Valid(90.0001, 0))
	assert.False(t, Valid(0, -180.5))
	assert.False(t, Valid(math.NaN(), 0))
	assert.False(t, Valid(0, math.Inf(1)))
}

func TestCenterOn(t *testing.T) {
	got := CenterOn(DefaultRegion, &models.Coordinates{Latitude: 35.0, Longitude: 139.0})
	assert.Equal(t, 35.0, got.Latitude)
	assert.Equal(t, 139.0, got.Longitude)
	assert.Equal(t, DefaultRegion.LatitudeDelta, got.LatitudeDelta)

	assert.Equal(t, DefaultRegion, CenterOn(DefaultRegion, nil))
	assert.Equal(t, DefaultRegion, CenterOn(DefaultRegion, &models.Coordinates{Latitude: 123, Longitude: 0}))
}

func TestDistanceKm(t *testing.T) {
	osaka := models.Coordinates{Latitude: 34.6937, Longitude: 135.5023}
	tokyo := models.Coordinates{Latitude: 35.6762, Longitude: 139.6503}

	assert.InDelta(t, 392.4, DistanceKm(osaka, tokyo), 1)
	assert.InDelta(t, 0, DistanceKm(osaka, osaka), 1e-9)
	assert.InDelta(t, DistanceKm(osaka, tokyo), DistanceKm(tokyo, osaka), 1e-9)
}
