package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/source"
)

type stubSource struct {
	records []source.RawRecord
	err     error
	calls   int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]source.RawRecord, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records, s.err
}

func ptr(f float64) *float64 { return &f }

func rec(id, name string, lat, lon *float64, types ...string) source.RawRecord {
	if types == nil {
		types = []string{}
	}
	return source.RawRecord{ID: id, Name: name, Latitude: lat, Longitude: lon, Types: types}
}

func TestLoadShelters_ValidRecordsInSourceOrder(t *testing.T) {
	src := &stubSource{records: []source.RawRecord{
		rec("b", "Bravo", ptr(35.0), ptr(139.0), "津波", "flood"),
		rec("a", "Alpha", ptr(34.0), ptr(135.0)),
	}}
	repo := NewShelterRepository(src, nil)

	got := repo.LoadShelters(context.Background())
	want := []models.Shelter{
		{ID: "b", Name: "Bravo", Latitude: 35.0, Longitude: 139.0, Types: []string{"tsunami", "flood"}},
		{ID: "a", Name: "Alpha", Latitude: 34.0, Longitude: 135.0, Types: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadShelters mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadShelters_MissingLatitudeExcludesOnlyThatRecord(t *testing.T) {
	src := &stubSource{records: []source.RawRecord{
		rec("1", "One", ptr(35.0), ptr(139.0)),
		rec("2", "Two", nil, ptr(139.1)),
		rec("3", "Three", ptr(35.2), ptr(139.2), "flood"),
	}}
	repo := NewShelterRepository(src, nil)

	report, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(report.Shelters) != 2 {
		t.Fatalf("expected 2 shelters, got %d", len(report.Shelters))
	}
	if report.Shelters[0].ID != "1" || report.Shelters[1].ID != "3" {
		t.Errorf("unexpected shelters: %+v", report.Shelters)
	}
	if report.Rejected[ReasonMissingCoords] != 1 {
		t.Errorf("expected 1 missing_coordinates rejection, got %v", report.Rejected)
	}
}

func TestLoad_RejectionReasons(t *testing.T) {
	src := &stubSource{records: []source.RawRecord{
		{Index: 0, Malformed: true},
		rec("", "No ID", ptr(1), ptr(1)),
		rec("x", "  ", ptr(1), ptr(1)),
		rec("y", "Y", ptr(1), nil),
		rec("z", "Z", ptr(91), ptr(0)),
		rec("w", "W", ptr(0), ptr(-180.5)),
		rec("ok", "OK", ptr(-90), ptr(180)),
		rec(" ok ", "Dup", ptr(0), ptr(0)),
	}}
	repo := NewShelterRepository(src, nil)

	report, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := map[Reason]int{
		ReasonMalformed:        1,
		ReasonMissingID:        1,
		ReasonMissingName:      1,
		ReasonMissingCoords:    1,
		ReasonCoordsOutOfRange: 2,
		ReasonDuplicateID:      1,
	}
	if diff := cmp.Diff(want, report.Rejected); diff != "" {
		t.Errorf("rejections mismatch (-want +got):\n%s", diff)
	}
	if report.RejectedTotal() != 7 {
		t.Errorf("expected 7 rejected, got %d", report.RejectedTotal())
	}
	if len(report.Shelters) != 1 || report.Shelters[0].Name != "OK" {
		t.Errorf("expected only the first 'ok' record, got %+v", report.Shelters)
	}
}

func TestLoad_UniqueIDsAndValidCoordinates(t *testing.T) {
	src := source.Bundled()
	shelters := NewShelterRepository(src, nil).LoadShelters(context.Background())
	if len(shelters) == 0 {
		t.Fatal("expected bundled shelters")
	}

	seen := make(map[string]bool)
	for _, s := range shelters {
		if seen[s.ID] {
			t.Errorf("duplicate id %s", s.ID)
		}
		seen[s.ID] = true
		if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
			t.Errorf("shelter %s has out of range coordinates", s.ID)
		}
		if s.Types == nil {
			t.Errorf("shelter %s has nil types", s.ID)
		}
	}
}

func TestLoad_TypesNormalizedAndDeduplicated(t *testing.T) {
	src := &stubSource{records: []source.RawRecord{
		rec("1", "One", ptr(1), ptr(1), "津波", "Tsunami", " ", "洪水", "flood"),
	}}

	shelters := NewShelterRepository(src, nil).LoadShelters(context.Background())
	if diff := cmp.Diff([]string{"tsunami", "flood"}, shelters[0].Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadShelters_Idempotent(t *testing.T) {
	repo := NewShelterRepository(source.Bundled(), nil)

	first := repo.LoadShelters(context.Background())
	second := repo.LoadShelters(context.Background())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("consecutive loads differ (-first +second):\n%s", diff)
	}
}

func TestLoadShelters_SourceUnavailable(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	repo := NewShelterRepository(src, nil)

	got := repo.LoadShelters(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	report, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load should not fail on source errors: %v", err)
	}
	if report.SourceErr == nil {
		t.Error("expected SourceErr to be set")
	}
}

func TestLoad_Cancelled(t *testing.T) {
	src := &stubSource{records: []source.RawRecord{rec("1", "One", ptr(1), ptr(1))}}
	repo := NewShelterRepository(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := repo.LoadShelters(ctx); len(got) != 0 {
		t.Errorf("expected no shelters on cancellation, got %d", len(got))
	}
}
