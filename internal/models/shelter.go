package models

import "time"

type Shelter struct {
	ID        string   `json:"id"` // Stable ID from the source, never reused
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Types     []string `json:"types"` // canonical hazard labels, empty for a general shelter
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (s *Shelter) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
	}
}

func (s *Shelter) HasType(t string) bool {
	for _, have := range s.Types {
		if have == t {
			return true
		}
	}
	return false
}

// Snapshot is one published load. It is shared between readers and must not be mutated.
type Snapshot struct {
	Generation uint64
	Source     string
	LoadedAt   time.Time
	Shelters   []Shelter
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Shelters)
}

func (s *Snapshot) Find(id string) (*Shelter, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Shelters {
		if s.Shelters[i].ID == id {
			return &s.Shelters[i], true
		}
	}
	return nil, false
}
