package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/source"
)

type SQLiteDB struct {
	db *sqlx.DB
}

type shelterRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Address   string  `db:"address"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
}

type typeRow struct {
	ShelterID string `db:"shelter_id"`
	Type      string `db:"type"`
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection: sqlite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS shelters (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			category TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS shelter_types (
			shelter_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (shelter_id, position),
			FOREIGN KEY (shelter_id) REFERENCES shelters(id)
		);

		CREATE TABLE IF NOT EXISTS snapshot_meta (
			singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
			generation INTEGER NOT NULL,
			source TEXT NOT NULL,
			loaded_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_shelters_position ON shelters(position);
		CREATE INDEX IF NOT EXISTS idx_shelters_category ON shelters(category);
		CREATE INDEX IF NOT EXISTS idx_shelter_types_type ON shelter_types(type);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) ReplaceSnapshot(ctx context.Context, snap *models.Snapshot) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var current uint64
	err = tx.GetContext(ctx, &current, `SELECT generation FROM snapshot_meta WHERE singleton = 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("error reading generation: %w", err)
	case current > snap.Generation:
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shelter_types`); err != nil {
		return false, fmt.Errorf("error clearing shelter types: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shelters`); err != nil {
		return false, fmt.Errorf("error clearing shelters: %w", err)
	}

	for i, sh := range snap.Shelters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shelters (id, position, name, address, latitude, longitude, category)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sh.ID, i, sh.Name, sh.Address, sh.Latitude, sh.Longitude, string(classifier.Classify(sh.Types)),
		)
		if err != nil {
			return false, fmt.Errorf("error inserting shelter %s: %w", sh.ID, err)
		}
		for j, t := range sh.Types {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO shelter_types (shelter_id, position, type) VALUES (?, ?, ?)`,
				sh.ID, j, t,
			)
			if err != nil {
				return false, fmt.Errorf("error inserting type for shelter %s: %w", sh.ID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (singleton, generation, source, loaded_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			generation = excluded.generation,
			source = excluded.source,
			loaded_at = excluded.loaded_at`,
		int64(snap.Generation), snap.Source, snap.LoadedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("error writing snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing snapshot: %w", err)
	}
	return true, nil
}

func (s *SQLiteDB) Generation(ctx context.Context) (uint64, error) {
	var gen uint64
	err := s.db.GetContext(ctx, &gen, `SELECT generation FROM snapshot_meta WHERE singleton = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading generation: %w", err)
	}
	return gen, nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Shelter, error) {
	var row shelterRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, address, latitude, longitude FROM shelters WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting shelter %s: %w", id, err)
	}

	shelters, err := s.withTypes(ctx, []shelterRow{row})
	if err != nil {
		return nil, err
	}
	return &shelters[0], nil
}

func (s *SQLiteDB) ListShelters(ctx context.Context, opts Filter) ([]models.Shelter, error) {
	query := `SELECT id, name, address, latitude, longitude FROM shelters`

	var (
		where []string
		args  []any
	)
	if opts.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*opts.Category))
	}
	if opts.Type != nil {
		where = append(where, "id IN (SELECT shelter_id FROM shelter_types WHERE type = ?)")
		args = append(args, *opts.Type)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position"

	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	var rows []shelterRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing shelters: %w", err)
	}
	return s.withTypes(ctx, rows)
}

func (s *SQLiteDB) withTypes(ctx context.Context, rows []shelterRow) ([]models.Shelter, error) {
	shelters := make([]models.Shelter, len(rows))
	if len(rows) == 0 {
		return shelters, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	query, args, err := sqlx.In(
		`SELECT shelter_id, type FROM shelter_types WHERE shelter_id IN (?) ORDER BY shelter_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("error building types query: %w", err)
	}

	var types []typeRow
	if err := s.db.SelectContext(ctx, &types, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error listing shelter types: %w", err)
	}

	byID := make(map[string][]string, len(rows))
	for _, t := range types {
		byID[t.ShelterID] = append(byID[t.ShelterID], t.Type)
	}

	for i, r := range rows {
		t := byID[r.ID]
		if t == nil {
			t = []string{}
		}
		shelters[i] = models.Shelter{
			ID:        r.ID,
			Name:      r.Name,
			Address:   r.Address,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Types:     t,
		}
	}
	return shelters, nil
}

// Name and Fetch let the stored snapshot act as a shelter source.
func (s *SQLiteDB) Name() string { return "sqlite" }

func (s *SQLiteDB) Fetch(ctx context.Context) ([]source.RawRecord, error) {
	shelters, err := s.ListShelters(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	records := make([]source.RawRecord, len(shelters))
	for i, sh := range shelters {
		lat, lon := sh.Latitude, sh.Longitude
		records[i] = source.RawRecord{
			Index:     i,
			ID:        sh.ID,
			Name:      sh.Name,
			Address:   sh.Address,
			Latitude:  &lat,
			Longitude: &lon,
			Types:     sh.Types,
		}
	}
	return records, nil
}
