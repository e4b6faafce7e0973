package repository

import (
	"context"

	"github.com/mr1hm/go-evac-shelters/internal/models"
)

type Filter struct {
	Limit    int
	Offset   int
	Category *models.Category
	Type     *string // canonical hazard type
}

// ShelterStore persists published snapshots.
type ShelterStore interface {
	// ReplaceSnapshot swaps the stored shelters for snap. It returns false without
	// writing when a newer generation is already stored.
	ReplaceSnapshot(ctx context.Context, snap *models.Snapshot) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Shelter, error)
	ListShelters(ctx context.Context, opts Filter) ([]models.Shelter, error)
	Generation(ctx context.Context) (uint64, error)
}
