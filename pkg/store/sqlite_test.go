package store

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coastwatch/pkg/db"
	"coastwatch/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := db.Init(":memory:")
	require.NoError(t, err)
	st := NewSQLiteStore(conn)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveLoadLayers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	layers := []model.PersistedLayer{
		{
			ID:      "predicted_2030",
			Name:    "Predicted Shoreline 2030",
			Type:    model.KindPredicted,
			Visible: true,
			Features: []model.Feature{{
				Geometry:   orb.LineString{{200000, 3450000}, {201000, 3450100}},
				Attributes: map[string]any{"year": 2030},
			}},
			GeometryType:     model.GeometryLine,
			SpatialReference: 32635,
			Renderer:         model.Style{Color: "#e6194b", Width: 2, Dashed: true},
			CreatedAt:        time.Now().UTC().Truncate(time.Second),
		},
		{
			ID:           "uploaded_survey",
			Name:         "survey",
			Type:         model.KindUploaded,
			GeometryType: model.GeometryPoint,
			Features: []model.Feature{{
				Geometry:   orb.Point{200500, 3450200},
				Attributes: map[string]any{"station": "A1"},
			}},
		},
	}

	require.NoError(t, st.SaveLayers(ctx, layers))

	loaded, err := st.LoadLayers(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "predicted_2030", loaded[0].ID)
	assert.Equal(t, model.KindPredicted, loaded[0].Type)
	assert.True(t, loaded[0].Renderer.Dashed)
	assert.Equal(t, 32635, loaded[0].SpatialReference)

	line, ok := loaded[0].Features[0].Geometry.(orb.LineString)
	require.True(t, ok, "geometry type must survive the round trip")
	assert.Equal(t, 200000.0, line[0].X())

	pt, ok := loaded[1].Features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, 3450200.0, pt.Y())
	assert.Equal(t, "A1", loaded[1].Features[0].Attributes["station"])
}

func TestSaveLayersReplacesWholeSnapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveLayers(ctx, []model.PersistedLayer{{ID: "a", Type: model.KindUploaded}}))
	require.NoError(t, st.SaveLayers(ctx, []model.PersistedLayer{{ID: "b", Type: model.KindUploaded}}))

	loaded, err := st.LoadLayers(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].ID)

	// Clearing persists the empty sequence, not a missing row.
	require.NoError(t, st.SaveLayers(ctx, nil))
	loaded, err = st.LoadLayers(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadLayersMissing(t *testing.T) {
	st := newTestStore(t)
	loaded, err := st.LoadLayers(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"type":"FeatureCollection","features":[]}`)
	require.NoError(t, st.SetCache(ctx, "coastline:segments", payload))

	got, ok := st.GetCache(ctx, "coastline:segments")
	require.True(t, ok)
	assert.Equal(t, payload, got, "compression must be transparent to the caller")

	_, ok = st.GetCache(ctx, "nope")
	assert.False(t, ok)
}

func TestStateRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok := st.GetState(ctx, "buffer_distance")
	assert.False(t, ok)

	require.NoError(t, st.SetState(ctx, "buffer_distance", "500"))
	val, ok := st.GetState(ctx, "buffer_distance")
	require.True(t, ok)
	assert.Equal(t, "500", val)

	require.NoError(t, st.SetState(ctx, "buffer_distance", "1000"))
	val, _ = st.GetState(ctx, "buffer_distance")
	assert.Equal(t, "1000", val)

	require.NoError(t, st.DeleteState(ctx, "buffer_distance"))
	_, ok = st.GetState(ctx, "buffer_distance")
	assert.False(t, ok)
}
