package derive

import (
	"math"

	"github.com/paulmach/orb"

	"coastwatch/pkg/model"
)

// arcSteps is the number of segments used per quarter circle when tracing
// round caps and joins.
const arcSteps = 8

// Buffer expands a feature's geometry outward by distanceMeters and returns
// the resulting polygon. A distance of zero or less means "no buffer" and
// yields a nil polygon, not an error.
//
// The outline uses round caps and joins. The same feature and distance
// always produce a structurally equal polygon, so callers can compare
// results to suppress redundant downstream updates.
func Buffer(f model.Feature, distanceMeters float64) (orb.Polygon, error) {
	if distanceMeters <= 0 {
		return nil, nil
	}
	if f.Geometry == nil {
		return nil, ErrEmptyCollection
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		return orb.Polygon{circle(g, distanceMeters)}, nil
	case orb.MultiPoint:
		if len(g) == 0 {
			return nil, ErrEmptyCollection
		}
		// Buffer the first point; multi-point prediction layers hold a
		// single position per feature.
		return orb.Polygon{circle(g[0], distanceMeters)}, nil
	case orb.LineString:
		return bufferLine(g, distanceMeters)
	case orb.MultiLineString:
		if len(g) == 0 {
			return nil, ErrEmptyCollection
		}
		return bufferLine(longestLine(g), distanceMeters)
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return nil, ErrEmptyCollection
		}
		return bufferLine(orb.LineString(g[0]), distanceMeters)
	default:
		return nil, ErrEmptyCollection
	}
}

func longestLine(mls orb.MultiLineString) orb.LineString {
	best := mls[0]
	for _, ls := range mls[1:] {
		if len(ls) > len(best) {
			best = ls
		}
	}
	return best
}

// circle traces a closed ring of radius r around center.
func circle(center orb.Point, r float64) orb.Ring {
	const steps = 4 * arcSteps
	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		ring = append(ring, orb.Point{
			center.X() + r*math.Cos(theta),
			center.Y() + r*math.Sin(theta),
		})
	}
	ring = append(ring, ring[0])
	return ring
}

// bufferLine traces the offset outline of a polyline: the left offset going
// forward, a round end cap, the left offset of the reversed line, and a
// round start cap. Joins are rounded. Tight concave bends can fold the
// outline slightly; shoreline inputs are smooth enough that this stays a
// faithful approximation.
func bufferLine(line orb.LineString, r float64) (orb.Polygon, error) {
	pts := dedupe(line)
	if len(pts) == 0 {
		return nil, ErrEmptyCollection
	}
	if len(pts) == 1 {
		return orb.Polygon{circle(pts[0], r)}, nil
	}

	ring := make(orb.Ring, 0, 4*len(pts)*arcSteps)
	ring = append(ring, offsetSide(pts, r)...)
	ring = append(ring, arc(pts[len(pts)-1], headingOut(pts), r)...)
	ring = append(ring, offsetSide(reverse(pts), r)...)
	ring = append(ring, arc(pts[0], headingBack(pts), r)...)
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

// offsetSide walks pts offsetting every segment to its left by r, inserting
// round joins at convex turns.
func offsetSide(pts []orb.Point, r float64) []orb.Point {
	var out []orb.Point
	for i := 0; i < len(pts)-1; i++ {
		nx, ny := leftNormal(pts[i], pts[i+1])
		out = append(out,
			orb.Point{pts[i].X() + nx*r, pts[i].Y() + ny*r},
			orb.Point{pts[i+1].X() + nx*r, pts[i+1].Y() + ny*r},
		)
		if i+2 < len(pts) {
			out = append(out, joinArc(pts[i+1], pts[i], pts[i+2], r)...)
		}
	}
	return out
}

// joinArc traces the round join at vertex v between segments prev→v and
// v→next, on the left side of travel.
func joinArc(v, prev, next orb.Point, r float64) []orb.Point {
	n1x, n1y := leftNormal(prev, v)
	n2x, n2y := leftNormal(v, next)
	a1 := math.Atan2(n1y, n1x)
	a2 := math.Atan2(n2y, n2x)
	return arcBetween(v, a1, a2, r)
}

// arc traces the semicircular cap at endpoint p, where heading is the
// direction of travel arriving at p.
func arc(p orb.Point, heading float64, r float64) []orb.Point {
	// The cap sweeps from the left normal around to the right normal.
	start := heading + math.Pi/2
	return arcBetween(p, start, start-math.Pi, r)
}

// arcBetween samples the arc around center from angle a1 to a2, taking the
// shorter sweep direction.
func arcBetween(center orb.Point, a1, a2, r float64) []orb.Point {
	delta := math.Mod(a2-a1, 2*math.Pi)
	if delta > math.Pi {
		delta -= 2 * math.Pi
	} else if delta < -math.Pi {
		delta += 2 * math.Pi
	}
	steps := int(math.Ceil(math.Abs(delta) / (math.Pi / 2) * arcSteps))
	if steps < 1 {
		steps = 1
	}
	out := make([]orb.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		theta := a1 + delta*float64(i)/float64(steps)
		out = append(out, orb.Point{
			center.X() + r*math.Cos(theta),
			center.Y() + r*math.Sin(theta),
		})
	}
	return out
}

func leftNormal(a, b orb.Point) (float64, float64) {
	dx, dy := b.X()-a.X(), b.Y()-a.Y()
	length := math.Hypot(dx, dy)
	return -dy / length, dx / length
}

func headingOut(pts []orb.Point) float64 {
	a, b := pts[len(pts)-2], pts[len(pts)-1]
	return math.Atan2(b.Y()-a.Y(), b.X()-a.X())
}

func headingBack(pts []orb.Point) float64 {
	a, b := pts[1], pts[0]
	return math.Atan2(b.Y()-a.Y(), b.X()-a.X())
}

func reverse(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// dedupe drops consecutive duplicate vertices, which would produce
// zero-length normals.
func dedupe(line orb.LineString) []orb.Point {
	out := make([]orb.Point, 0, len(line))
	for _, p := range line {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
