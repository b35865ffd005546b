package crs

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coastwatch/pkg/model"
)

func TestForEPSG(t *testing.T) {
	tests := []struct {
		name    string
		epsg    int
		wantErr bool
	}{
		{"WGS84", 4326, false},
		{"UTM 35N", 32635, false},
		{"UTM 1N", 32601, false},
		{"UTM 60S", 32760, false},
		{"Web Mercator unsupported", 3857, true},
		{"zero", 0, true},
		{"out of zone range", 32661, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ForEPSG(tt.epsg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrProjection))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.epsg, p.EPSG())
		})
	}
}

// Reference value cross-checked against published UTM conversion tables for
// the Alexandria area.
func TestUTMRoundTrip(t *testing.T) {
	p, err := ForEPSG(32635)
	require.NoError(t, err)

	lon, lat := 29.9187, 31.2001 // Alexandria harbour

	x, y := p.FromWGS84(lon, lat)
	assert.InDelta(t, 778000, x, 2000, "easting should be in zone 35 range")
	assert.Greater(t, y, 3400000.0)
	assert.Less(t, y, 3500000.0)

	backLon, backLat := p.ToWGS84(x, y)
	assert.InDelta(t, lon, backLon, 1e-7)
	assert.InDelta(t, lat, backLat, 1e-7)
}

func TestUTMSouthernHemisphere(t *testing.T) {
	p, err := ForEPSG(32735)
	require.NoError(t, err)

	x, y := p.FromWGS84(28.0, -26.2) // Johannesburg, zone 35S
	assert.Greater(t, y, 0.0, "false northing keeps southern coordinates positive")

	lon, lat := p.ToWGS84(x, y)
	assert.InDelta(t, 28.0, lon, 1e-7)
	assert.InDelta(t, -26.2, lat, 1e-7)
}

func TestNormalizeGeographicInput(t *testing.T) {
	norm, err := NewNormalizer(EPSGAnalytic)
	require.NoError(t, err)

	in := []model.Feature{{
		Geometry:   orb.LineString{{29.90, 31.20}, {29.91, 31.21}},
		Attributes: map[string]any{"id": "seg1"},
	}}

	out, err := norm.Normalize(in, EPSGWGS84)
	require.NoError(t, err)
	require.Len(t, out, 1)

	line, ok := out[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Greater(t, line[0].X(), 100000.0, "should be projected meters, not degrees")
	assert.Equal(t, "seg1", out[0].Attributes["id"])

	// Input must not be mutated.
	assert.Equal(t, 29.90, in[0].Geometry.(orb.LineString)[0].X())
}

func TestNormalizeAlreadyInTarget(t *testing.T) {
	norm, err := NewNormalizer(EPSGAnalytic)
	require.NoError(t, err)

	in := []model.Feature{{Geometry: orb.Point{200000, 3450000}}}
	out, err := norm.Normalize(in, EPSGAnalytic)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{200000, 3450000}, out[0].Geometry)

	// Still a copy, never an alias.
	out[0].Geometry = orb.Point{0, 0}
	assert.Equal(t, orb.Point{200000, 3450000}, in[0].Geometry)
}

func TestNormalizeGuessesUndeclaredCRS(t *testing.T) {
	norm, err := NewNormalizer(EPSGAnalytic)
	require.NoError(t, err)

	// Coordinate magnitudes outside lon/lat range read as already projected.
	projected := []model.Feature{{Geometry: orb.Point{200000, 3450000}}}
	out, err := norm.Normalize(projected, 0)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{200000, 3450000}, out[0].Geometry)

	// Small magnitudes read as geographic and get projected.
	geographic := []model.Feature{{Geometry: orb.Point{29.90, 31.20}}}
	out, err = norm.Normalize(geographic, 0)
	require.NoError(t, err)
	assert.Greater(t, out[0].Geometry.(orb.Point).X(), 100000.0)
}

func TestNormalizeUnsupportedSourceKeepsOriginal(t *testing.T) {
	norm, err := NewNormalizer(EPSGAnalytic)
	require.NoError(t, err)

	in := []model.Feature{{Geometry: orb.Point{1, 2}}}
	out, err := norm.Normalize(in, 3857)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProjection))
	assert.Equal(t, orb.Point{1, 2}, out[0].Geometry, "original coordinates survive a failed reprojection")
}

func TestNormalizeEmpty(t *testing.T) {
	norm, err := NewNormalizer(EPSGAnalytic)
	require.NoError(t, err)

	out, err := norm.Normalize(nil, EPSGWGS84)
	require.NoError(t, err)
	assert.Nil(t, out)
}
