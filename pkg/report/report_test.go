package report

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorAppendsInOrder(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	acc := NewWithClock(clock)

	acc.AddLine(LineRecord{Year: 2030, LayerID: "predicted_a", Color: "#ff0000", Features: 3})
	clock.Advance(time.Minute)
	acc.AddLine(LineRecord{Year: 2040, LayerID: "predicted_b", Color: "#00ff00", Features: 2})

	snap := acc.Snapshot()
	require.Len(t, snap.PredictedLines, 2)
	assert.Equal(t, 2030, snap.PredictedLines[0].Year)
	assert.Equal(t, 2040, snap.PredictedLines[1].Year)
	assert.True(t, snap.PredictedLines[1].Timestamp.After(snap.PredictedLines[0].Timestamp))
}

func TestBufferSummaryReplacedWholesale(t *testing.T) {
	acc := NewWithClock(clockwork.NewFakeClock())

	acc.SetBufferSummary(BufferSummary{DistanceMeters: 200, TotalBuildings: 10, AtRisk: 2})
	acc.SetBufferSummary(BufferSummary{DistanceMeters: 500, TotalBuildings: 10, AtRisk: 3})

	snap := acc.Snapshot()
	require.NotNil(t, snap.Buffer)
	assert.Equal(t, 500.0, snap.Buffer.DistanceMeters)
	assert.Equal(t, 3, snap.Buffer.AtRisk)

	acc.ClearBufferSummary()
	assert.Nil(t, acc.Snapshot().Buffer)
}

func TestSnapshotIsACopy(t *testing.T) {
	acc := New()
	acc.AddRiskCheck(RiskRecord{DistanceMeters: 150, Status: "High Risk"})

	snap := acc.Snapshot()
	snap.RiskChecks[0].Status = "mutated"

	assert.Equal(t, "High Risk", acc.Snapshot().RiskChecks[0].Status)
}

func TestAddPointsBatch(t *testing.T) {
	acc := NewWithClock(clockwork.NewFakeClock())
	acc.AddPoints(
		PointRecord{ID: "p1", Year: 2030, X: 29.9, Y: 31.2, Source: "remote"},
		PointRecord{ID: "p2", Year: 2030, X: 29.8, Y: 31.1, Source: "remote"},
	)
	snap := acc.Snapshot()
	require.Len(t, snap.PredictedPoints, 2)
	assert.Equal(t, snap.PredictedPoints[0].Timestamp, snap.PredictedPoints[1].Timestamp)
}
