package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_JSONArray(t *testing.T) {
	doc := `[
		{"id": "a", "name": "Alpha", "address": "1 Main", "latitude": 35.1, "longitude": 139.2, "types": ["tsunami", "flood"]},
		{"id": 42, "name": "Beta", "lat": "35.2", "lng": 139.3},
		"not an object",
		{"id": "c", "name": "Gamma", "latitude": 35.3, "longitude": 139.4, "types": "tsunami"}
	]`

	records, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "1 Main", records[0].Address)
	assert.Equal(t, []string{"tsunami", "flood"}, records[0].Types)
	require.NotNil(t, records[0].Latitude)
	assert.Equal(t, 35.1, *records[0].Latitude)

	assert.Equal(t, "42", records[1].ID)
	require.NotNil(t, records[1].Latitude)
	assert.Equal(t, 35.2, *records[1].Latitude)
	assert.Equal(t, []string{}, records[1].Types)

	assert.True(t, records[2].Malformed)
	assert.Equal(t, 2, records[2].Index)

	assert.Equal(t, []string{}, records[3].Types, "non-list types collapse to empty")
}

func TestDecode_JSONObjectWithShelters(t *testing.T) {
	doc := `{"Shelters": [{"ID": "x", "Name": "X", "Latitude": 1, "Longitude": 2, "Types": ["flood", 7]}]}`

	records, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].ID)
	assert.Equal(t, []string{}, records[0].Types, "a list with non-string items collapses to empty")
}

func TestDecode_JSONMissingCoordinates(t *testing.T) {
	doc := `[{"id": "a", "name": "A", "longitude": 139.0}, {"id": "b", "name": "B", "latitude": "north", "longitude": 139.0}]`

	records, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	assert.Nil(t, records[0].Latitude)
	assert.NotNil(t, records[0].Longitude)
	assert.Nil(t, records[1].Latitude)
}

func TestDecode_NonIntegralIDIsDropped(t *testing.T) {
	records, err := Decode(strings.NewReader(`[{"id": 1.5, "name": "A"}]`), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, records[0].ID)
}

func TestDecode_LargeIntegralIDs(t *testing.T) {
	doc := `
- id: 1.0e19
  name: North
  latitude: 34.7
  longitude: 135.6
- id: 2.0e19
  name: South
  latitude: 34.8
  longitude: 135.7
`
	records, err := Decode(strings.NewReader(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10000000000000000000", records[0].ID)
	assert.Equal(t, "20000000000000000000", records[1].ID)

	records, err = Decode(strings.NewReader(`[
		{"id": 123456789012345678901234, "name": "A"},
		{"id": 3e20, "name": "B"},
		{"id": 4.0, "name": "C"}
	]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "123456789012345678901234", records[0].ID)
	assert.Equal(t, "300000000000000000000", records[1].ID)
	assert.Equal(t, "4", records[2].ID)
}

func TestDecode_GeoJSON(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "id": "f1", "geometry": {"type": "Point", "coordinates": [135.6, 34.7]},
			 "properties": {"name": "Feature One", "types": ["津波"]}},
			{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
			 "properties": {"id": "f2", "name": "Line"}},
			42
		]
	}`

	records, err := Decode(strings.NewReader(doc), FormatGeoJSON)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "f1", records[0].ID)
	require.NotNil(t, records[0].Latitude)
	assert.Equal(t, 34.7, *records[0].Latitude)
	assert.Equal(t, 135.6, *records[0].Longitude)
	assert.Equal(t, []string{"津波"}, records[0].Types)

	assert.Equal(t, "f2", records[1].ID)
	assert.Nil(t, records[1].Latitude)

	assert.True(t, records[2].Malformed)
}

func TestDecode_GeoJSONRequiresFeatureCollection(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"id": "a"}]`), FormatGeoJSON)
	assert.Error(t, err)
}

func TestDecode_JSONDetectsFeatureCollection(t *testing.T) {
	doc := `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"id": 3, "name": "N"}}]}`

	records, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3", records[0].ID)
}

func TestDecode_CSV(t *testing.T) {
	doc := "\ufeffID,Name,Address,Lat,Lon,Types\n" +
		"1,Alpha,Somewhere,35.0,139.0,津波|洪水\n" +
		"2,Beta,,35.1,139.1,\n" +
		"3,Gamma,Elsewhere,,139.2,flood;landslide\n" +
		"4,Delta,\"unterminated,35,139,flood\n"

	records, err := Decode(strings.NewReader(doc), FormatCSV)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 3)

	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, []string{"津波", "洪水"}, records[0].Types)
	require.NotNil(t, records[0].Longitude)
	assert.Equal(t, 139.0, *records[0].Longitude)

	assert.Equal(t, []string{}, records[1].Types)
	assert.Empty(t, records[1].Address)

	assert.Nil(t, records[2].Latitude)
	assert.Equal(t, []string{"flood", "landslide"}, records[2].Types)
}

func TestDecode_CSVEmpty(t *testing.T) {
	_, err := Decode(strings.NewReader(""), FormatCSV)
	assert.Error(t, err)
}

func TestDecode_YAML(t *testing.T) {
	doc := `
shelters:
  - id: 10
    name: Hill School
    address: 2-1 Hill
    latitude: 34.77
    longitude: 135.63
    types: [tsunami]
  - id: hall
    name: Town Hall
    lat: 34.78
    lon: 135.64
  - just a string
`
	records, err := Decode(strings.NewReader(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "10", records[0].ID)
	assert.Equal(t, []string{"tsunami"}, records[0].Types)
	require.NotNil(t, records[0].Latitude)
	assert.Equal(t, 34.77, *records[0].Latitude)

	assert.Equal(t, "hall", records[1].ID)
	assert.Equal(t, []string{}, records[1].Types)

	assert.True(t, records[2].Malformed)
}

func TestDecode_Unparseable(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"shelters": [`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"other": 1}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`42`), FormatJSON)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json":         FormatJSON,
		"b.GeoJSON":      FormatGeoJSON,
		"dir/c.csv":      FormatCSV,
		"d.yml":          FormatYAML,
		"/tmp/e.v1.yaml": FormatYAML,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("noext")
	assert.Error(t, err)
	_, err = FormatFromPath("file.xml")
	assert.Error(t, err)
}
