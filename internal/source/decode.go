package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode parses a whole shelter document. It fails only when the document itself is
// unreadable; bad individual entries come back as malformed or partial records.
func Decode(r io.Reader, format Format) ([]RawRecord, error) {
	switch format {
	case FormatJSON, FormatGeoJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding json: %w", err)
		}
		if format == FormatGeoJSON && !isFeatureCollection(doc) {
			return nil, errors.New("geojson document is not a FeatureCollection")
		}
		return recordsFromDocument(doc)
	case FormatYAML:
		var doc any
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding yaml: %w", err)
		}
		return recordsFromDocument(doc)
	case FormatCSV:
		return decodeCSV(r)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

func recordsFromDocument(doc any) ([]RawRecord, error) {
	switch v := doc.(type) {
	case []any:
		return recordsFromList(v), nil
	case map[string]any:
		m := lowerKeys(v)
		if isFeatureCollection(m) {
			features, ok := m["features"].([]any)
			if !ok {
				return nil, errors.New("feature collection has no features array")
			}
			return recordsFromFeatures(features), nil
		}
		if list, ok := m["shelters"].([]any); ok {
			return recordsFromList(list), nil
		}
		return nil, errors.New("document has no shelters list")
	default:
		return nil, fmt.Errorf("unexpected document root: %T", doc)
	}
}

func isFeatureCollection(doc any) bool {
	m, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	t, _ := lowerKeys(m)["type"].(string)
	return strings.EqualFold(t, "FeatureCollection")
}

func recordsFromList(list []any) []RawRecord {
	records := make([]RawRecord, 0, len(list))
	for i, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			records = append(records, RawRecord{Index: i, Malformed: true})
			continue
		}
		records = append(records, recordFromFields(i, lowerKeys(fields)))
	}
	return records
}

func recordsFromFeatures(features []any) []RawRecord {
	records := make([]RawRecord, 0, len(features))
	for i, item := range features {
		feature, ok := item.(map[string]any)
		if !ok {
			records = append(records, RawRecord{Index: i, Malformed: true})
			continue
		}
		feature = lowerKeys(feature)

		fields := map[string]any{}
		if props, ok := feature["properties"].(map[string]any); ok {
			fields = lowerKeys(props)
		}
		if _, ok := fields["id"]; !ok {
			fields["id"] = feature["id"]
		}
		// GeoJSON positions are [lon, lat].
		if geom, ok := feature["geometry"].(map[string]any); ok {
			geom = lowerKeys(geom)
			coords, _ := geom["coordinates"].([]any)
			if t, _ := geom["type"].(string); strings.EqualFold(t, "Point") && len(coords) >= 2 {
				fields["longitude"] = coords[0]
				fields["latitude"] = coords[1]
			}
		}
		records = append(records, recordFromFields(i, fields))
	}
	return records
}

func decodeCSV(r io.Reader) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv document is empty")
		}
		return nil, fmt.Errorf("error reading csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var records []RawRecord
	for i := 0; ; i++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			records = append(records, RawRecord{Index: i, Malformed: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv row %d: %w", i+1, err)
		}

		fields := make(map[string]any, len(cols))
		for name, idx := range cols {
			if idx < len(row) {
				fields[name] = row[idx]
			}
		}
		for _, key := range []string{"types", "hazards"} {
			if v, ok := fields[key].(string); ok {
				fields[key] = splitTypes(v)
			}
		}
		records = append(records, recordFromFields(i, fields))
	}
	return records, nil
}

func splitTypes(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';' || r == '、'
	})
	if parts == nil {
		return []string{}
	}
	return parts
}

func recordFromFields(index int, fields map[string]any) RawRecord {
	return RawRecord{
		Index:     index,
		ID:        idValue(first(fields, "id", "shelter_id", "_id")),
		Name:      stringValue(first(fields, "name")),
		Address:   stringValue(first(fields, "address")),
		Latitude:  floatValue(first(fields, "latitude", "lat")),
		Longitude: floatValue(first(fields, "longitude", "lon", "lng")),
		Types:     typesValue(first(fields, "types", "hazards")),
	}
}

func first(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// idValue accepts strings and integral numbers. Anything else yields "".
func idValue(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if isIntegerLiteral(id.String()) {
			return id.String()
		}
		if f, err := id.Float64(); err == nil {
			return integralFloat(f)
		}
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return integralFloat(id)
	}
	return ""
}

// integralFloat formats f without exponent or fraction, or returns "" when f is
// not a finite whole number.
func integralFloat(f float64) string {
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func floatValue(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// typesValue returns an empty set for anything that is not a list of strings.
func typesValue(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		types := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return []string{}
			}
			types = append(types, s)
		}
		return types
	default:
		return []string{}
	}
}
