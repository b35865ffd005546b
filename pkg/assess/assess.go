// Package assess runs the buffer and risk analyses against predicted
// shorelines: which buildings fall inside a hazard buffer, and how far a
// clicked point sits from the nearest predicted line.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"coastwatch/pkg/config"
	"coastwatch/pkg/crs"
	"coastwatch/pkg/derive"
	"coastwatch/pkg/model"
	"coastwatch/pkg/registry"
	"coastwatch/pkg/report"
	"coastwatch/pkg/store"
)

// BuildingSource provides normalized building footprints.
type BuildingSource interface {
	FetchBuildings(ctx context.Context) ([]model.Feature, error)
}

// BufferResult is the outcome of one buffer application.
type BufferResult struct {
	LayerID        string          `json:"layerId"`
	DistanceMeters float64         `json:"bufferDistance"`
	Buffer         orb.Polygon     `json:"-"`
	Bounds         orb.Bound       `json:"-"`
	TotalBuildings int             `json:"totalBuildings"`
	AtRisk         []model.Feature `json:"-"`
	AtRiskCount    int             `json:"atRiskBuildings"`
}

// RiskResult is the outcome of one risk-checker click.
type RiskResult struct {
	DistanceMeters float64         `json:"distance"`
	Defined        bool            `json:"defined"`
	Status         derive.RiskBand `json:"status"`
}

type bufferKey struct {
	layerID  string
	distance float64
}

// Assessor holds the analysis dependencies plus the last applied buffer,
// so re-applying identical inputs does not refetch or recompute.
type Assessor struct {
	buildings BuildingSource
	registry  *registry.Registry
	report    *report.Accumulator
	norm      *crs.Normalizer
	state     store.StateStore

	mu      sync.Mutex
	lastKey bufferKey
	last    *BufferResult
}

// New creates an assessor. state may be nil in tests.
func New(buildings BuildingSource, reg *registry.Registry, rep *report.Accumulator, norm *crs.Normalizer, st store.StateStore) *Assessor {
	return &Assessor{
		buildings: buildings,
		registry:  reg,
		report:    rep,
		norm:      norm,
		state:     st,
	}
}

// ApplyBuffer buffers the given predicted layer by distance meters and
// intersects the result with the building footprints. layerID may be empty
// to target the most recent predicted line layer. A non-positive distance
// clears the active buffer.
func (a *Assessor) ApplyBuffer(ctx context.Context, layerID string, distance float64) (BufferResult, error) {
	if distance <= 0 {
		a.clearBuffer()
		return BufferResult{LayerID: layerID}, nil
	}

	if layerID == "" {
		var err error
		layerID, err = a.latestPredictedLine()
		if err != nil {
			return BufferResult{}, err
		}
	}

	a.mu.Lock()
	if a.last != nil && a.lastKey == (bufferKey{layerID, distance}) {
		cached := *a.last
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	layer, ok := a.registry.Get(layerID)
	if !ok {
		return BufferResult{}, fmt.Errorf("%w: unknown layer %q", model.ErrValidation, layerID)
	}
	if len(layer.Features) == 0 {
		return BufferResult{}, fmt.Errorf("%w: layer %q has no features", model.ErrValidation, layerID)
	}

	buf, err := derive.Buffer(layer.Features[0], distance)
	if err != nil {
		return BufferResult{}, fmt.Errorf("buffer %s: %w", layerID, err)
	}

	bounds, err := derive.Bounds(layer.Features)
	if err != nil {
		return BufferResult{}, fmt.Errorf("buffer %s: %w", layerID, err)
	}

	buildings, err := a.buildings.FetchBuildings(ctx)
	if err != nil {
		return BufferResult{}, fmt.Errorf("buffer %s: %w", layerID, err)
	}
	atRisk := derive.Intersect(buildings, buf)

	result := BufferResult{
		LayerID:        layerID,
		DistanceMeters: distance,
		Buffer:         buf,
		Bounds:         bounds,
		TotalBuildings: len(buildings),
		AtRisk:         atRisk,
		AtRiskCount:    len(atRisk),
	}

	a.mu.Lock()
	a.lastKey = bufferKey{layerID, distance}
	a.last = &result
	a.mu.Unlock()

	a.report.SetBufferSummary(report.BufferSummary{
		LayerID:        layerID,
		DistanceMeters: distance,
		TotalBuildings: len(buildings),
		AtRisk:         len(atRisk),
	})
	a.rememberDistance(ctx, distance)
	return result, nil
}

// CheckRisk measures the distance from a point to the nearest predicted
// shoreline and classifies it. The point is reprojected from declaredEPSG
// into the working CRS first; unlike layer ingestion, a failed reprojection
// aborts the check instead of falling back to the raw coordinates, which
// would classify the wrong location. With no predicted lines present the
// distance is undefined and nothing is reported.
func (a *Assessor) CheckRisk(ctx context.Context, pt orb.Point, declaredEPSG int) (RiskResult, error) {
	normalized, err := a.norm.Normalize([]model.Feature{{Geometry: pt}}, declaredEPSG)
	if err != nil {
		return RiskResult{}, fmt.Errorf("risk check: %w", err)
	}
	working, ok := normalized[0].Geometry.(orb.Point)
	if !ok {
		return RiskResult{}, fmt.Errorf("risk check: %w: not a point", model.ErrValidation)
	}

	lines := a.registry.PredictedLines()
	dist := derive.NearestDistance(working, lines)
	if derive.IsUndefined(dist) {
		return RiskResult{Defined: false, DistanceMeters: 0}, nil
	}

	band := derive.ClassifyRisk(dist)
	a.report.AddRiskCheck(report.RiskRecord{
		DistanceMeters: dist,
		Status:         string(band),
	})
	return RiskResult{DistanceMeters: dist, Defined: true, Status: band}, nil
}

// latestPredictedLine returns the most recently added predicted line layer.
func (a *Assessor) latestPredictedLine() (string, error) {
	id := ""
	for e := range a.registry.ListByKind(model.KindPredicted) {
		if e.GeometryType == model.GeometryLine {
			id = e.ID
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: no predicted shoreline layer to buffer", model.ErrValidation)
	}
	return id, nil
}

func (a *Assessor) clearBuffer() {
	a.mu.Lock()
	a.last = nil
	a.lastKey = bufferKey{}
	a.mu.Unlock()
	a.report.ClearBufferSummary()
}

func (a *Assessor) rememberDistance(ctx context.Context, distance float64) {
	if a.state == nil {
		return
	}
	val := strconv.FormatFloat(distance, 'f', -1, 64)
	if err := a.state.SetState(ctx, config.KeyBufferDistance, val); err != nil {
		slog.Debug("failed to persist buffer distance", "error", err)
	}
}
