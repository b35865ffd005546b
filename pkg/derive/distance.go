package derive

import (
	"math"

	"github.com/paulmach/orb"
)

// Undefined is the sentinel returned when no reference lines exist. It is
// never a valid distance; callers must check IsUndefined before classifying.
var Undefined = math.Inf(1)

// IsUndefined reports whether d is the undefined-distance sentinel.
func IsUndefined(d float64) bool { return math.IsInf(d, 1) }

// NearestDistance returns the minimum planar distance in meters from point
// to any of the given lines. With no lines it returns Undefined, not zero.
func NearestDistance(point orb.Point, lines []orb.LineString) float64 {
	best := Undefined
	for _, line := range lines {
		for i := 0; i < len(line)-1; i++ {
			if d := pointSegmentDistance(point, line[i], line[i+1]); d < best {
				best = d
			}
		}
		if len(line) == 1 {
			if d := dist(point, line[0]); d < best {
				best = d
			}
		}
	}
	return best
}

func pointSegmentDistance(p, a, b orb.Point) float64 {
	abx, aby := b.X()-a.X(), b.Y()-a.Y()
	apx, apy := p.X()-a.X(), p.Y()-a.Y()
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return dist(p, a)
	}
	t := (apx*abx + apy*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return dist(p, orb.Point{a.X() + t*abx, a.Y() + t*aby})
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(b.X()-a.X(), b.Y()-a.Y())
}
