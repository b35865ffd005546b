package predict

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"coastwatch/pkg/model"
)

var epsgRe = regexp.MustCompile(`(\d{4,5})`)

// crsProbe captures the legacy GeoJSON crs member that the prediction
// services still emit. The 2016 spec dropped it, so geojson ignores it.
type crsProbe struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection and reports
// the EPSG code declared in its legacy crs member, 0 when absent.
func ParseFeatureCollection(data []byte) ([]model.Feature, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	features := make([]model.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		features = append(features, model.Feature{Geometry: f.Geometry, Attributes: attrs})
	}

	var probe crsProbe
	epsg := 0
	if err := json.Unmarshal(data, &probe); err == nil && probe.CRS != nil {
		epsg = epsgFromName(probe.CRS.Properties.Name)
	}
	return features, epsg, nil
}

func epsgFromName(name string) int {
	if name == "" {
		return 0
	}
	// CRS84 is axis-swapped WGS84; both are lon/lat for our purposes.
	if strings.Contains(name, "CRS84") {
		return 4326
	}
	if m := epsgRe.FindString(name); m != "" {
		if code, err := strconv.Atoi(m); err == nil {
			return code
		}
	}
	return 0
}

// segmentDoc is the wire shape of the coastline segments service: a
// FeatureCollection whose geometry members are serialized GeoJSON strings.
type segmentDoc struct {
	Features []struct {
		Geometry   string         `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// ParseSegments decodes shoreline segments, unwrapping the stringified
// geometry each feature carries. Features with no geometry are skipped.
func ParseSegments(data []byte) ([]model.Feature, error) {
	var doc segmentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	features := make([]model.Feature, 0, len(doc.Features))
	for _, f := range doc.Features {
		if f.Geometry == "" {
			continue
		}
		var g geojson.Geometry
		if err := json.Unmarshal([]byte(f.Geometry), &g); err != nil {
			return nil, fmt.Errorf("%w: embedded geometry: %v", model.ErrMalformedResponse, err)
		}
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		features = append(features, model.Feature{Geometry: g.Geometry(), Attributes: attrs})
	}
	return features, nil
}

// ParseCSV builds point features from a CSV with coordinate columns.
// Column matching is case-insensitive: lon/x pick the easting, lat/y the
// northing. Rows with unparseable coordinates are skipped.
func ParseCSV(data []byte) ([]model.Feature, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: csv has no data rows", model.ErrValidation)
	}

	header := records[0]
	xCol, yCol := -1, -1
	for i, col := range header {
		lower := strings.ToLower(col)
		switch {
		case strings.Contains(lower, "lon") || strings.Contains(lower, "x"):
			if xCol == -1 {
				xCol = i
			}
		case strings.Contains(lower, "lat") || strings.Contains(lower, "y"):
			if yCol == -1 {
				yCol = i
			}
		}
	}
	if xCol == -1 || yCol == -1 {
		return nil, fmt.Errorf("%w: csv has no coordinate columns", model.ErrValidation)
	}

	var features []model.Feature
	for _, row := range records[1:] {
		if len(row) <= xCol || len(row) <= yCol {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[xCol]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(row[yCol]), 64)
		if errX != nil || errY != nil {
			continue
		}
		attrs := make(map[string]any)
		for i, col := range header {
			if i == xCol || i == yCol || i >= len(row) {
				continue
			}
			attrs[col] = row[i]
		}
		features = append(features, model.Feature{
			Geometry:   orb.Point{x, y},
			Attributes: attrs,
		})
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: csv has no usable rows", model.ErrValidation)
	}
	return features, nil
}
