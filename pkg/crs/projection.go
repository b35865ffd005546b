// Package crs normalizes geometry collections into a single working
// coordinate reference system before any spatial operation runs on them.
package crs

import (
	"fmt"

	"coastwatch/pkg/model"
)

// EPSG codes the application works in.
const (
	// EPSGWGS84 is the display CRS (longitude/latitude degrees).
	EPSGWGS84 = 4326
	// EPSGAnalytic is the projected CRS all analytic layers use
	// (UTM zone 35N, meters — the Alexandria coast).
	EPSGAnalytic = 32635
)

// Projection converts between a source CRS and WGS84.
type Projection interface {
	// ToWGS84 converts source CRS coordinates to lon/lat degrees.
	ToWGS84(x, y float64) (lon, lat float64)
	// FromWGS84 converts lon/lat degrees to source CRS coordinates.
	FromWGS84(lon, lat float64) (x, y float64)
	// EPSG returns the EPSG code of the source CRS.
	EPSG() int
}

// ForEPSG returns a Projection for the given EPSG code, or an error for
// codes the application does not support.
func ForEPSG(epsg int) (Projection, error) {
	switch {
	case epsg == EPSGWGS84:
		return wgs84Identity{}, nil
	case epsg >= 32601 && epsg <= 32660:
		return &utmProjection{zone: epsg - 32600, north: true, epsg: epsg}, nil
	case epsg >= 32701 && epsg <= 32760:
		return &utmProjection{zone: epsg - 32700, north: false, epsg: epsg}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported EPSG code %d", model.ErrProjection, epsg)
	}
}

// wgs84Identity is the no-op projection for data already in EPSG:4326.
type wgs84Identity struct{}

func (wgs84Identity) ToWGS84(x, y float64) (float64, float64)       { return x, y }
func (wgs84Identity) FromWGS84(lon, lat float64) (float64, float64) { return lon, lat }
func (wgs84Identity) EPSG() int                                     { return EPSGWGS84 }
