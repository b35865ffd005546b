// Package derive computes planar spatial derivations — bounds, buffers,
// intersections, nearest distances — over features already expressed in the
// projected working CRS (coordinates in meters).
package derive

import (
	"errors"

	"github.com/paulmach/orb"

	"coastwatch/pkg/model"
)

// ErrEmptyCollection is returned when bounds are requested for a collection
// with no geometry. Callers check non-emptiness first.
var ErrEmptyCollection = errors.New("derive: empty geometry collection")

// Bounds returns the envelope of the collection.
func Bounds(features []model.Feature) (orb.Bound, error) {
	var b orb.Bound
	found := false
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	if !found {
		return orb.Bound{}, ErrEmptyCollection
	}
	return b, nil
}
