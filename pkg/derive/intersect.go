package derive

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"coastwatch/pkg/model"
)

// AtRiskAttribute marks a candidate whose geometry intersects the reference
// buffer polygon.
const AtRiskAttribute = "at_risk"

// Intersect returns the subset of candidates whose geometry intersects the
// reference polygon. Each survivor carries a copied attribute map with the
// at-risk tag set. An empty candidate set or a nil reference yields an empty
// result, never an error.
func Intersect(candidates []model.Feature, reference orb.Polygon) []model.Feature {
	out := []model.Feature{}
	if len(reference) == 0 || len(candidates) == 0 {
		return out
	}
	refBound := reference.Bound()
	for _, c := range candidates {
		if c.Geometry == nil {
			continue
		}
		if !refBound.Intersects(c.Geometry.Bound()) {
			continue
		}
		if !intersects(c.Geometry, reference) {
			continue
		}
		attrs := make(map[string]any, len(c.Attributes)+1)
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		attrs[AtRiskAttribute] = true
		out = append(out, model.Feature{Geometry: c.Geometry, Attributes: attrs})
	}
	return out
}

// intersects reports whether g shares any point with the polygon.
func intersects(g orb.Geometry, poly orb.Polygon) bool {
	switch t := g.(type) {
	case orb.Point:
		return planar.PolygonContains(poly, t)
	case orb.MultiPoint:
		for _, p := range t {
			if planar.PolygonContains(poly, p) {
				return true
			}
		}
		return false
	case orb.LineString:
		return lineIntersectsPolygon(t, poly)
	case orb.MultiLineString:
		for _, ls := range t {
			if lineIntersectsPolygon(ls, poly) {
				return true
			}
		}
		return false
	case orb.Ring:
		return intersects(orb.Polygon{t}, poly)
	case orb.Polygon:
		return polygonsIntersect(t, poly)
	case orb.MultiPolygon:
		for _, p := range t {
			if polygonsIntersect(p, poly) {
				return true
			}
		}
		return false
	case orb.Collection:
		for _, sub := range t {
			if intersects(sub, poly) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func lineIntersectsPolygon(line orb.LineString, poly orb.Polygon) bool {
	for _, p := range line {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	for _, ring := range poly {
		if ringCrossesLine(ring, line) {
			return true
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	// Vertex containment either way covers full overlap; edge crossings
	// cover partial overlap without contained vertices.
	for _, p := range a[0] {
		if planar.PolygonContains(b, p) {
			return true
		}
	}
	for _, p := range b[0] {
		if planar.PolygonContains(a, p) {
			return true
		}
	}
	for _, ring := range a {
		if ringCrossesLine(ring, orb.LineString(b[0])) {
			return true
		}
	}
	return false
}

func ringCrossesLine(ring orb.Ring, line orb.LineString) bool {
	for i := 0; i < len(ring)-1; i++ {
		for j := 0; j < len(line)-1; j++ {
			if segmentsIntersect(ring[i], ring[i+1], line[j], line[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect is the standard orientation test, counting collinear
// overlap as an intersection.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c orb.Point) float64 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

func onSegment(a, b, p orb.Point) bool {
	return min(a.X(), b.X()) <= p.X() && p.X() <= max(a.X(), b.X()) &&
		min(a.Y(), b.Y()) <= p.Y() && p.Y() <= max(a.Y(), b.Y())
}
