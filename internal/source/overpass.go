package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"
)

const assemblyPointHazardPrefix = "assembly_point:"

// BBox is a south,west,north,east bounding box in degrees.
type BBox struct {
	South, West, North, East float64
}

func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox must be south,west,north,east: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	b := BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	if b.South >= b.North || b.West >= b.East {
		return BBox{}, errors.New("bbox south/west must be less than north/east")
	}
	return b, nil
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// OverpassSource reads emergency assembly points from OpenStreetMap.
type OverpassSource struct {
	client   *overpass.Client
	endpoint string
	bbox     BBox
}

func NewOverpassSource(endpoint string, bbox BBox, timeout time.Duration) *OverpassSource {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 1, httpClient)
	return &OverpassSource{
		client:   &client,
		endpoint: endpoint,
		bbox:     bbox,
	}
}

func (s *OverpassSource) Name() string { return "overpass:" + s.bbox.String() }

func (s *OverpassSource) query() string {
	return fmt.Sprintf(`
		[out:json][timeout:25];
		(
			node["emergency"="assembly_point"](%[1]s);
			way["emergency"="assembly_point"](%[1]s);
		);
		out body;
		>;
		out skel qt;
	`, s.bbox)
}

func (s *OverpassSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	type queryResult struct {
		res overpass.Result
		err error
	}

	// The overpass client has no context support; the HTTP timeout bounds the goroutine.
	ch := make(chan queryResult, 1)
	go func() {
		res, err := s.client.Query(s.query())
		ch <- queryResult{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", r.err)
		}
		return convertOverpass(&r.res), nil
	}
}

// convertOverpass emits nodes then ways, each ordered by OSM ID, so repeated queries
// over unchanged data produce the same sequence.
func convertOverpass(result *overpass.Result) []RawRecord {
	var records []RawRecord

	nodeIDs := make([]int64, 0, len(result.Nodes))
	for id, node := range result.Nodes {
		if node.Tags["emergency"] == "assembly_point" {
			nodeIDs = append(nodeIDs, id)
		}
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	for _, id := range nodeIDs {
		node := result.Nodes[id]
		lat, lon := node.Lat, node.Lon
		records = append(records, recordFromTags(len(records), "node/"+strconv.FormatInt(id, 10), node.Tags, &lat, &lon))
	}

	wayIDs := make([]int64, 0, len(result.Ways))
	for id, way := range result.Ways {
		if way.Tags["emergency"] == "assembly_point" {
			wayIDs = append(wayIDs, id)
		}
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })

	for _, id := range wayIDs {
		way := result.Ways[id]
		var latPtr, lonPtr *float64
		if count := len(way.Nodes); count > 0 {
			var lat, lon float64
			for _, node := range way.Nodes {
				lat += node.Lat
				lon += node.Lon
			}
			lat /= float64(count)
			lon /= float64(count)
			latPtr, lonPtr = &lat, &lon
		}
		records = append(records, recordFromTags(len(records), "way/"+strconv.FormatInt(id, 10), way.Tags, latPtr, lonPtr))
	}

	return records
}

func recordFromTags(index int, id string, tags map[string]string, lat, lon *float64) RawRecord {
	name := tags["name"]
	if name == "" {
		name = tags["name:ja"]
	}
	if name == "" {
		name = tags["name:en"]
	}

	var hazards []string
	for k, v := range tags {
		if strings.HasPrefix(k, assemblyPointHazardPrefix) && v == "yes" {
			hazards = append(hazards, strings.TrimPrefix(k, assemblyPointHazardPrefix))
		}
	}
	sort.Strings(hazards)
	if hazards == nil {
		hazards = []string{}
	}

	return RawRecord{
		Index:     index,
		ID:        id,
		Name:      strings.TrimSpace(name),
		Address:   addressFromTags(tags),
		Latitude:  lat,
		Longitude: lon,
		Types:     hazards,
	}
}

func addressFromTags(tags map[string]string) string {
	if full := tags["addr:full"]; full != "" {
		return full
	}
	var parts []string
	for _, k := range []string{"addr:province", "addr:city", "addr:quarter", "addr:street", "addr:housenumber"} {
		if v := strings.TrimSpace(tags[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
