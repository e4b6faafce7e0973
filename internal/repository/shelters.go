package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/geo"
	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/source"
)

type Reason string

const (
	ReasonMalformed        Reason = "malformed_record"
	ReasonMissingID        Reason = "missing_id"
	ReasonMissingName      Reason = "missing_name"
	ReasonMissingCoords    Reason = "missing_coordinates"
	ReasonCoordsOutOfRange Reason = "coordinates_out_of_range"
	ReasonDuplicateID      Reason = "duplicate_id"
)

// Report is the outcome of one load.
type Report struct {
	Source    string
	Shelters  []models.Shelter
	Rejected  map[Reason]int
	SourceErr error // set when the source could not be read at all
}

func (r Report) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// ShelterRepository turns raw source rows into validated shelters.
type ShelterRepository struct {
	src    source.Source
	logger *slog.Logger
}

func NewShelterRepository(src source.Source, logger *slog.Logger) *ShelterRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShelterRepository{
		src:    src,
		logger: logger,
	}
}

func (r *ShelterRepository) SourceName() string {
	return r.src.Name()
}

// LoadShelters returns the validated shelters in source order. It never fails: an
// unavailable source or a cancelled context yields an empty slice.
func (r *ShelterRepository) LoadShelters(ctx context.Context) []models.Shelter {
	report, err := r.Load(ctx)
	if err != nil {
		return []models.Shelter{}
	}
	return report.Shelters
}

// Load is LoadShelters with diagnostics. The error is non-nil only when ctx was
// cancelled, in which case the report must be discarded.
func (r *ShelterRepository) Load(ctx context.Context) (Report, error) {
	report := Report{
		Source:   r.src.Name(),
		Shelters: []models.Shelter{},
		Rejected: make(map[Reason]int),
	}

	records, err := r.src.Fetch(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Report{}, ctxErr
	}
	if err != nil {
		r.logger.Error("shelter source unavailable", "source", report.Source, "error", err)
		report.SourceErr = err
		return report, nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		shelter, reason := validate(rec)
		if reason == "" {
			if _, dup := seen[shelter.ID]; dup {
				reason = ReasonDuplicateID
			}
		}
		if reason != "" {
			report.Rejected[reason]++
			r.logger.Debug("shelter record rejected",
				"source", report.Source,
				"index", rec.Index,
				"id", rec.ID,
				"reason", reason,
			)
			continue
		}

		seen[shelter.ID] = struct{}{}
		report.Shelters = append(report.Shelters, shelter)
	}

	if n := report.RejectedTotal(); n > 0 {
		r.logger.Warn("shelter records rejected", "source", report.Source, "rejected", n, "accepted", len(report.Shelters))
	}
	r.logger.Info("shelters loaded", "source", report.Source, "count", len(report.Shelters))

	return report, nil
}

func validate(rec source.RawRecord) (models.Shelter, Reason) {
	if rec.Malformed {
		return models.Shelter{}, ReasonMalformed
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return models.Shelter{}, ReasonMissingID
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return models.Shelter{}, ReasonMissingName
	}
	if rec.Latitude == nil || rec.Longitude == nil {
		return models.Shelter{}, ReasonMissingCoords
	}
	if !geo.Valid(*rec.Latitude, *rec.Longitude) {
		return models.Shelter{}, ReasonCoordsOutOfRange
	}

	return models.Shelter{
		ID:        id,
		Name:      name,
		Address:   strings.TrimSpace(rec.Address),
		Latitude:  *rec.Latitude,
		Longitude: *rec.Longitude,
		Types:     normalizeTypes(rec.Types),
	}, ""
}

// normalizeTypes canonicalizes labels, dropping blanks and repeats. Never returns nil.
func normalizeTypes(raw []string) []string {
	types := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, label := range raw {
		t := classifier.NormalizeType(label)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}
