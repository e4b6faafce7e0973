package repository

import (
	"fmt"

	"github.com/mr1hm/go-evac-shelters/internal/config"
	"github.com/mr1hm/go-evac-shelters/internal/source"
)

// OpenSource builds the source selected by cfg.Source. db is required only for
// the sqlite source.
func OpenSource(cfg config.ShelterConfig, db *SQLiteDB) (source.Source, error) {
	var format source.Format
	if cfg.Format != "" {
		f, err := source.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	switch cfg.Kind() {
	case config.SourceBundled:
		return source.Bundled(), nil
	case config.SourceSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite source requires an open database")
		}
		return db, nil
	case config.SourceOverpass:
		bbox, err := source.ParseBBox(cfg.OverpassBBox)
		if err != nil {
			return nil, fmt.Errorf("error parsing overpass bbox: %w", err)
		}
		return source.NewOverpassSource(cfg.OverpassURL, bbox, cfg.HTTPTimeout), nil
	case config.SourceHTTP:
		return source.NewHTTPSource(cfg.Source, format, cfg.HTTPTimeout), nil
	default:
		return source.NewFileSource(cfg.Source, format)
	}
}
