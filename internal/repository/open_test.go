package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mr1hm/go-evac-shelters/internal/config"
	"github.com/mr1hm/go-evac-shelters/internal/source"
)

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "shelters.csv")
	if err := os.WriteFile(csvPath, []byte("id,name,lat,lon\n1,A,34.7,135.6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	db := setupTestDB(t)
	defer db.Close()

	tests := []struct {
		name     string
		cfg      config.ShelterConfig
		wantName string
	}{
		{"bundled", config.ShelterConfig{Source: "bundled"}, "bundled"},
		{"empty means bundled", config.ShelterConfig{}, "bundled"},
		{"sqlite", config.ShelterConfig{Source: "sqlite"}, "sqlite"},
		{"file", config.ShelterConfig{Source: csvPath}, "file:" + csvPath},
		{"http", config.ShelterConfig{Source: "https://example.com/s.json", HTTPTimeout: time.Second}, "https://example.com/s.json"},
		{"overpass", config.ShelterConfig{Source: "overpass", OverpassURL: "http://localhost/api", OverpassBBox: "34.7,135.5,34.8,135.7", HTTPTimeout: time.Second}, "overpass:34.7,135.5,34.8,135.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := OpenSource(tt.cfg, db)
			if err != nil {
				t.Fatalf("OpenSource failed: %v", err)
			}
			if src.Name() != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, src.Name())
			}
		})
	}
}

func TestOpenSource_Errors(t *testing.T) {
	if _, err := OpenSource(config.ShelterConfig{Source: "sqlite"}, nil); err == nil {
		t.Error("expected error for sqlite without database")
	}
	if _, err := OpenSource(config.ShelterConfig{Source: "bundled", Format: "xml"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := OpenSource(config.ShelterConfig{Source: "overpass", OverpassBBox: "nope"}, nil); err == nil {
		t.Error("expected error for bad bbox")
	}
}

var _ source.Source = (*SQLiteDB)(nil)
