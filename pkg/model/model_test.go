package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryTypeOf(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		want GeometryType
	}{
		{"point", orb.Point{1, 2}, GeometryPoint},
		{"multipoint", orb.MultiPoint{{1, 2}}, GeometryPoint},
		{"line", orb.LineString{{0, 0}, {1, 1}}, GeometryLine},
		{"multiline", orb.MultiLineString{{{0, 0}, {1, 1}}}, GeometryLine},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, GeometryPolygon},
		{"ring", orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, GeometryPolygon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GeometryTypeOf(tt.geom)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := GeometryTypeOf(orb.Collection{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFeatureJSONRoundTrip(t *testing.T) {
	f := Feature{
		Geometry:   orb.LineString{{200000, 3450000}, {201000, 3450100}},
		Attributes: map[string]any{"date": "2024-01-01", "uncertainty": 12.5},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"LineString"`)

	var back Feature
	require.NoError(t, json.Unmarshal(data, &back))

	line, ok := back.Geometry.(orb.LineString)
	require.True(t, ok, "concrete geometry type must survive")
	assert.Equal(t, 200000.0, line[0].X())
	assert.Equal(t, "2024-01-01", back.Attributes["date"])
	assert.Equal(t, 12.5, back.Attributes["uncertainty"])
}

func TestNewLayerID(t *testing.T) {
	id := NewLayerID(KindPredicted)
	assert.True(t, strings.HasPrefix(id, "predicted_"))
	assert.NotEqual(t, id, NewLayerID(KindPredicted))
}
