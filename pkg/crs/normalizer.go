package crs

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"coastwatch/pkg/model"
)

// Normalizer reprojects inbound geometry collections into one working CRS.
type Normalizer struct {
	target Projection
}

// NewNormalizer creates a Normalizer for the given working CRS.
func NewNormalizer(targetEPSG int) (*Normalizer, error) {
	target, err := ForEPSG(targetEPSG)
	if err != nil {
		return nil, err
	}
	return &Normalizer{target: target}, nil
}

// TargetEPSG returns the working CRS the normalizer produces.
func (n *Normalizer) TargetEPSG() int { return n.target.EPSG() }

// Normalize returns an equivalent collection expressed in the working CRS.
//
// declaredEPSG is the source CRS stated by the payload's metadata; pass 0
// when none was declared, in which case a coordinate-magnitude heuristic
// decides whether the input is geographic or projected. The heuristic is an
// approximation, not a guarantee, and is flagged in the logs when used.
//
// The result never aliases the input. On projection failure the original
// collection is returned unchanged together with an error wrapping
// model.ErrProjection; callers continue with the unprojected data.
func (n *Normalizer) Normalize(features []model.Feature, declaredEPSG int) ([]model.Feature, error) {
	if len(features) == 0 {
		return nil, nil
	}

	source := declaredEPSG
	if source == 0 {
		source = n.guessEPSG(features)
		slog.Warn("crs: no declared CRS, falling back to coordinate-magnitude heuristic",
			"assumed_epsg", source, "target_epsg", n.target.EPSG())
	}

	if source == n.target.EPSG() {
		return cloneFeatures(features), nil
	}

	from, err := ForEPSG(source)
	if err != nil {
		slog.Warn("crs: cannot reproject, keeping original coordinates", "source_epsg", source, "error", err)
		return features, err
	}

	out := cloneFeatures(features)
	for i := range out {
		projected, err := projectGeometry(out[i].Geometry, from, n.target)
		if err != nil {
			slog.Warn("crs: reprojection failed, keeping original coordinates",
				"source_epsg", source, "target_epsg", n.target.EPSG(), "error", err)
			return features, err
		}
		out[i].Geometry = projected
	}
	return out, nil
}

// guessEPSG applies the structural heuristic: coordinate magnitudes within
// valid lon/lat range read as geographic, anything else as the analytic
// projected CRS.
func (n *Normalizer) guessEPSG(features []model.Feature) int {
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if b.Min.X() < -180 || b.Max.X() > 180 || b.Min.Y() < -90 || b.Max.Y() > 90 {
			return EPSGAnalytic
		}
	}
	return EPSGWGS84
}

func cloneFeatures(features []model.Feature) []model.Feature {
	out := make([]model.Feature, len(features))
	for i, f := range features {
		attrs := make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			attrs[k] = v
		}
		out[i] = model.Feature{Attributes: attrs}
		if f.Geometry != nil {
			out[i].Geometry = orb.Clone(f.Geometry)
		}
	}
	return out
}

// projectGeometry rebuilds g with every coordinate pair routed source → WGS84
// → target. Errors out on non-finite results instead of letting them reach
// the registry.
func projectGeometry(g orb.Geometry, from, to Projection) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	var badPoint error
	mapped := mapPoints(g, func(p orb.Point) orb.Point {
		lon, lat := from.ToWGS84(p.X(), p.Y())
		x, y := to.FromWGS84(lon, lat)
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			badPoint = fmt.Errorf("%w: non-finite result for (%v, %v)", model.ErrProjection, p.X(), p.Y())
		}
		return orb.Point{x, y}
	})
	if badPoint != nil {
		return nil, badPoint
	}
	return mapped, nil
}

func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return fn(t)
	case orb.MultiPoint:
		for i := range t {
			t[i] = fn(t[i])
		}
		return t
	case orb.LineString:
		for i := range t {
			t[i] = fn(t[i])
		}
		return t
	case orb.MultiLineString:
		for i := range t {
			for j := range t[i] {
				t[i][j] = fn(t[i][j])
			}
		}
		return t
	case orb.Ring:
		for i := range t {
			t[i] = fn(t[i])
		}
		return t
	case orb.Polygon:
		for i := range t {
			for j := range t[i] {
				t[i][j] = fn(t[i][j])
			}
		}
		return t
	case orb.MultiPolygon:
		for i := range t {
			for j := range t[i] {
				for k := range t[i][j] {
					t[i][j][k] = fn(t[i][j][k])
				}
			}
		}
		return t
	case orb.Collection:
		for i := range t {
			t[i] = mapPoints(t[i], fn)
		}
		return t
	case orb.Bound:
		return orb.Bound{Min: fn(t.Min), Max: fn(t.Max)}
	}
	return g
}
