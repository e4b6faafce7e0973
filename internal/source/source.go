// Package source reads raw shelter rows from bundled, file, HTTP and Overpass feeds.
//
// A source only translates bytes into RawRecord values. Validation, normalization and
// de-duplication belong to the repository, so every decoder keeps rows it cannot
// fully understand and marks them instead of failing the whole document.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatCSV     Format = "csv"
	FormatYAML    Format = "yaml"
)

type Source interface {
	Fetch(ctx context.Context) ([]RawRecord, error)
	Name() string
}

// RawRecord is one untyped row from a feed. Nil coordinates mean the field was absent
// or not numeric.
type RawRecord struct {
	Index     int // position in the source document
	ID        string
	Name      string
	Address   string
	Latitude  *float64
	Longitude *float64
	Types     []string
	Malformed bool // the entry was not an object or row at all
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "geojson":
		return FormatGeoJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown shelter format: %q", s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer format of %q: no extension", path)
	}
	return ParseFormat(ext)
}
