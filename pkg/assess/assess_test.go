package assess

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coastwatch/pkg/crs"
	"coastwatch/pkg/derive"
	"coastwatch/pkg/model"
	"coastwatch/pkg/registry"
	"coastwatch/pkg/report"
)

type fakeBuildings struct {
	features []model.Feature
	err      error
	calls    int
}

func (f *fakeBuildings) FetchBuildings(context.Context) ([]model.Feature, error) {
	f.calls++
	return f.features, f.err
}

// shoreline runs east-west at northing 3450000.
func predictedLineEntry() model.LayerEntry {
	return model.LayerEntry{
		ID:           "predicted_test",
		Name:         "Predicted Shoreline 2030",
		Kind:         model.KindPredicted,
		GeometryType: model.GeometryLine,
		Visible:      true,
		Features: []model.Feature{{
			Geometry: orb.LineString{
				{200000, 3450000}, {201000, 3450000}, {202000, 3450000},
			},
			Attributes: map[string]any{},
		}},
		SpatialReference: crs.EPSGAnalytic,
	}
}

func squareAt(x, y, size float64) model.Feature {
	return model.Feature{
		Geometry: orb.Polygon{{
			{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
		}},
		Attributes: map[string]any{},
	}
}

func newTestAssessor(t *testing.T, buildings *fakeBuildings) (*Assessor, *registry.Registry, *report.Accumulator) {
	t.Helper()
	norm, err := crs.NewNormalizer(crs.EPSGAnalytic)
	require.NoError(t, err)
	reg := registry.New(nil)
	rep := report.New()
	return New(buildings, reg, rep, norm, nil), reg, rep
}

func TestApplyBufferCountsAtRiskBuildings(t *testing.T) {
	// 10 buildings at increasing distance north of the line; with a 500m
	// buffer the three nearest fall inside.
	var features []model.Feature
	for i := 0; i < 10; i++ {
		features = append(features, squareAt(200500, 3450050+float64(i)*200, 50))
	}
	buildings := &fakeBuildings{features: features}
	a, reg, rep := newTestAssessor(t, buildings)
	_, _, err := reg.Add(context.Background(), predictedLineEntry())
	require.NoError(t, err)

	result, err := a.ApplyBuffer(context.Background(), "predicted_test", 500)
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalBuildings)
	assert.Equal(t, 3, result.AtRiskCount)
	require.NotNil(t, result.Buffer)

	for _, f := range result.AtRisk {
		assert.Equal(t, true, f.Attributes[derive.AtRiskAttribute])
	}

	snap := rep.Snapshot()
	require.NotNil(t, snap.Buffer)
	assert.Equal(t, 500.0, snap.Buffer.DistanceMeters)
	assert.Equal(t, 3, snap.Buffer.AtRisk)
}

func TestApplyBufferIdenticalInputsUsesCache(t *testing.T) {
	buildings := &fakeBuildings{features: []model.Feature{squareAt(200500, 3450100, 50)}}
	a, reg, _ := newTestAssessor(t, buildings)
	_, _, err := reg.Add(context.Background(), predictedLineEntry())
	require.NoError(t, err)

	first, err := a.ApplyBuffer(context.Background(), "predicted_test", 500)
	require.NoError(t, err)
	second, err := a.ApplyBuffer(context.Background(), "predicted_test", 500)
	require.NoError(t, err)

	assert.Equal(t, first.AtRiskCount, second.AtRiskCount)
	assert.Equal(t, 1, buildings.calls, "identical inputs must not refetch buildings")

	// A different distance recomputes.
	_, err = a.ApplyBuffer(context.Background(), "predicted_test", 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, buildings.calls)
}

func TestApplyBufferZeroClears(t *testing.T) {
	buildings := &fakeBuildings{features: []model.Feature{squareAt(200500, 3450100, 50)}}
	a, reg, rep := newTestAssessor(t, buildings)
	_, _, err := reg.Add(context.Background(), predictedLineEntry())
	require.NoError(t, err)

	_, err = a.ApplyBuffer(context.Background(), "predicted_test", 500)
	require.NoError(t, err)
	require.NotNil(t, rep.Snapshot().Buffer)

	result, err := a.ApplyBuffer(context.Background(), "predicted_test", 0)
	require.NoError(t, err)
	assert.Nil(t, result.Buffer)
	assert.Nil(t, rep.Snapshot().Buffer, "clearing the buffer drops the summary")
}

func TestApplyBufferTargetsLatestPredictedLine(t *testing.T) {
	buildings := &fakeBuildings{features: []model.Feature{squareAt(200500, 3450100, 50)}}
	a, reg, _ := newTestAssessor(t, buildings)

	first := predictedLineEntry()
	first.ID = "predicted_old"
	second := predictedLineEntry()
	second.ID = "predicted_new"
	_, _, err := reg.Add(context.Background(), first)
	require.NoError(t, err)
	_, _, err = reg.Add(context.Background(), second)
	require.NoError(t, err)

	result, err := a.ApplyBuffer(context.Background(), "", 500)
	require.NoError(t, err)
	assert.Equal(t, "predicted_new", result.LayerID)
}

func TestApplyBufferNoPredictedLayer(t *testing.T) {
	a, _, _ := newTestAssessor(t, &fakeBuildings{})
	_, err := a.ApplyBuffer(context.Background(), "", 500)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestApplyBufferBuildingsFetchFails(t *testing.T) {
	buildings := &fakeBuildings{err: fmt.Errorf("%w: feature server down", model.ErrNetwork)}
	a, reg, _ := newTestAssessor(t, buildings)
	_, _, err := reg.Add(context.Background(), predictedLineEntry())
	require.NoError(t, err)

	_, err = a.ApplyBuffer(context.Background(), "predicted_test", 500)
	require.ErrorIs(t, err, model.ErrNetwork)
}

func TestCheckRiskBands(t *testing.T) {
	a, reg, rep := newTestAssessor(t, &fakeBuildings{})
	_, _, err := reg.Add(context.Background(), predictedLineEntry())
	require.NoError(t, err)

	tests := []struct {
		name   string
		point  orb.Point
		status derive.RiskBand
	}{
		{"on top of line", orb.Point{200500, 3450150}, derive.RiskHigh},
		{"within 500", orb.Point{200500, 3450400}, derive.RiskMid},
		{"within 1000", orb.Point{200500, 3450900}, derive.RiskLow},
		{"beyond 1000", orb.Point{200500, 3460000}, derive.RiskSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.CheckRisk(context.Background(), tt.point, crs.EPSGAnalytic)
			require.NoError(t, err)
			assert.True(t, result.Defined)
			assert.Equal(t, tt.status, result.Status)
		})
	}

	assert.Len(t, rep.Snapshot().RiskChecks, len(tests))
}

func TestCheckRiskUndefinedWithoutPredictedLines(t *testing.T) {
	a, _, rep := newTestAssessor(t, &fakeBuildings{})

	result, err := a.CheckRisk(context.Background(), orb.Point{200500, 3450150}, crs.EPSGAnalytic)
	require.NoError(t, err)
	assert.False(t, result.Defined)
	assert.Empty(t, rep.Snapshot().RiskChecks, "undefined distance is not reported")
}

func TestCheckRiskReprojectsGeographicInput(t *testing.T) {
	a, reg, _ := newTestAssessor(t, &fakeBuildings{})

	// Line through the projected image of (27.0E, 31.0N).
	norm, err := crs.NewNormalizer(crs.EPSGAnalytic)
	require.NoError(t, err)
	projected, err := norm.Normalize([]model.Feature{{Geometry: orb.Point{27.0, 31.0}}}, crs.EPSGWGS84)
	require.NoError(t, err)
	center := projected[0].Geometry.(orb.Point)

	entry := predictedLineEntry()
	entry.Features = []model.Feature{{
		Geometry: orb.LineString{
			{center.X() - 1000, center.Y()}, {center.X() + 1000, center.Y()},
		},
	}}
	_, _, err = reg.Add(context.Background(), entry)
	require.NoError(t, err)

	result, err := a.CheckRisk(context.Background(), orb.Point{27.0, 31.0}, crs.EPSGWGS84)
	require.NoError(t, err)
	assert.True(t, result.Defined)
	assert.Equal(t, derive.RiskHigh, result.Status, "distance should be near zero after reprojection")
}
