// Package predict coordinates fetches against the shoreline prediction
// services and lands the results in the layer registry. Each flow (line,
// point, upload) runs one request at a time; a newer request supersedes an
// in-flight one, whose result is discarded on arrival.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"coastwatch/pkg/config"
	"coastwatch/pkg/crs"
	"coastwatch/pkg/model"
	"coastwatch/pkg/registry"
	"coastwatch/pkg/report"
	"coastwatch/pkg/request"
	"coastwatch/pkg/store"
	"coastwatch/pkg/tracker"
)

// ErrSuperseded is returned when a newer request for the same flow started
// while this one was in flight.
var ErrSuperseded = errors.New("predict: result superseded by newer request")

// Fetcher is the transport surface the coordinator needs.
type Fetcher interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
	Post(ctx context.Context, u string, body []byte) ([]byte, error)
	PostMultipart(ctx context.Context, u, contentType string, body []byte) ([]byte, error)
}

var _ Fetcher = (*request.Client)(nil)

// Coordinator drives the prediction flows.
type Coordinator struct {
	client   Fetcher
	cfg      config.PredictConfig
	norm     *crs.Normalizer
	registry *registry.Registry
	report   *report.Accumulator
	tracker  *tracker.Tracker
	settings config.Provider
	state    store.StateStore
	runner   *Runner

	flows flowState
}

// New creates a coordinator. The runner may be nil when no local fallback
// is configured; state may be nil in tests.
func New(client Fetcher, cfg config.PredictConfig, norm *crs.Normalizer, reg *registry.Registry,
	rep *report.Accumulator, trk *tracker.Tracker, settings config.Provider, st store.StateStore) *Coordinator {
	c := &Coordinator{
		client:   client,
		cfg:      cfg,
		norm:     norm,
		registry: reg,
		report:   rep,
		tracker:  trk,
		settings: settings,
		state:    st,
	}
	if cfg.Local.Enabled {
		c.runner = NewRunner(cfg.Local)
	}
	return c
}

// Status reports which flows currently have a request in flight.
func (c *Coordinator) Status() FlowStatus {
	return c.flows.status()
}

// PredictLine requests the predicted shoreline for a year and registers it
// as a new predicted layer.
func (c *Coordinator) PredictLine(ctx context.Context, year int) (model.LayerEntry, registry.PersistStatus, error) {
	if err := validateYear(year); err != nil {
		return model.LayerEntry{}, "", err
	}

	gen := c.flows.begin(flowLine)
	defer c.flows.end(flowLine, gen)

	body, _ := json.Marshal(map[string]int{"year": year})
	data, err := c.client.Post(ctx, c.cfg.LineURL, body)

	var features []model.Feature
	declared := 0
	if err != nil {
		if c.runner == nil || !c.runner.Enabled() {
			return model.LayerEntry{}, "", fmt.Errorf("predict line %d: %w", year, err)
		}
		slog.Warn("remote predictor unavailable, running local model", "year", year, "error", err)
		features, err = c.runner.Run(ctx, year)
		if err != nil {
			return model.LayerEntry{}, "", fmt.Errorf("predict line %d: %w", year, err)
		}
		declared = crs.EPSGWGS84
	} else {
		features, declared, err = ParseFeatureCollection(data)
		if err != nil {
			return model.LayerEntry{}, "", fmt.Errorf("predict line %d: %w", year, err)
		}
	}
	if len(features) == 0 {
		return model.LayerEntry{}, "", fmt.Errorf("predict line %d: %w: empty collection", year, model.ErrMalformedResponse)
	}

	normalized, err := c.norm.Normalize(features, declared)
	if err != nil {
		slog.Warn("normalization failed, keeping source coordinates", "error", err)
	}

	if !c.flows.current(flowLine, gen) {
		c.tracker.Discard("predict")
		return model.LayerEntry{}, "", ErrSuperseded
	}

	geomType, err := model.GeometryTypeOf(normalized[0].Geometry)
	if err != nil {
		return model.LayerEntry{}, "", err
	}

	color := c.settings.PaletteColor(ctx)
	entry := model.LayerEntry{
		ID:           model.NewLayerID(model.KindPredicted),
		Name:         fmt.Sprintf("Predicted Shoreline %d", year),
		Kind:         model.KindPredicted,
		GeometryType: geomType,
		Features:     normalized,
		Visible:      true,
		Style:        model.Style{Color: color, Width: 2, Dashed: true},
		Popup: model.PopupTemplate{
			Title:   "Predicted Shoreline",
			Content: fmt.Sprintf("<b>Year:</b> %d", year),
		},
		SpatialReference: c.norm.TargetEPSG(),
	}

	added, status, err := c.registry.Add(ctx, entry)
	if err != nil {
		return model.LayerEntry{}, status, err
	}

	c.report.AddLine(report.LineRecord{
		Year:     year,
		LayerID:  added.ID,
		Color:    color,
		Features: len(normalized),
	})
	c.rememberYear(ctx, config.KeyLastLineYear, year)
	return added, status, nil
}

// PointInput carries the attributes the point model needs. Pointer fields
// distinguish missing from zero, so validation can name the absent field.
type PointInput struct {
	LRR               *float64 `json:"LRR"`
	SeaLevelRiseTrend *float64 `json:"Sea_Level_Rise_Trend_mm_year"`
	NSM               *float64 `json:"NSM"`
	CurrentPositionX  *float64 `json:"Current_Position_X"`
	CurrentPositionY  *float64 `json:"Current_Position_Y"`
	Elevation         *float64 `json:"Elevation"`
	CoastalSlope      *float64 `json:"Coastal_Slope"`
	Year              *int     `json:"year"`
}

// Validate checks that every model input is present.
func (in *PointInput) Validate() error {
	required := []struct {
		name string
		ok   bool
	}{
		{"LRR", in.LRR != nil},
		{"Sea_Level_Rise_Trend_mm_year", in.SeaLevelRiseTrend != nil},
		{"NSM", in.NSM != nil},
		{"Current_Position_X", in.CurrentPositionX != nil},
		{"Current_Position_Y", in.CurrentPositionY != nil},
		{"Elevation", in.Elevation != nil},
		{"Coastal_Slope", in.CoastalSlope != nil},
		{"year", in.Year != nil},
	}
	for _, f := range required {
		if !f.ok {
			return fmt.Errorf("%w: missing required field: %s", model.ErrValidation, f.name)
		}
	}
	return validateYear(*in.Year)
}

func (in *PointInput) inputs() map[string]float64 {
	return map[string]float64{
		"LRR":                          *in.LRR,
		"Sea_Level_Rise_Trend_mm_year": *in.SeaLevelRiseTrend,
		"NSM":                          *in.NSM,
		"Current_Position_X":           *in.CurrentPositionX,
		"Current_Position_Y":           *in.CurrentPositionY,
		"Elevation":                    *in.Elevation,
		"Coastal_Slope":                *in.CoastalSlope,
	}
}

// PredictPoint requests a single-point prediction. Validation runs before
// any network traffic.
func (c *Coordinator) PredictPoint(ctx context.Context, in PointInput) (model.LayerEntry, registry.PersistStatus, error) {
	if err := in.Validate(); err != nil {
		return model.LayerEntry{}, "", err
	}
	year := *in.Year

	gen := c.flows.begin(flowPoint)
	defer c.flows.end(flowPoint, gen)

	body, _ := json.Marshal(&in)
	data, err := c.client.Post(ctx, c.cfg.PointURL, body)
	if err != nil {
		return model.LayerEntry{}, "", fmt.Errorf("predict point %d: %w", year, err)
	}

	features, declared, err := ParseFeatureCollection(data)
	if err != nil {
		return model.LayerEntry{}, "", fmt.Errorf("predict point %d: %w", year, err)
	}
	if len(features) == 0 {
		return model.LayerEntry{}, "", fmt.Errorf("predict point %d: %w: empty collection", year, model.ErrMalformedResponse)
	}

	normalized, err := c.norm.Normalize(features, declared)
	if err != nil {
		slog.Warn("normalization failed, keeping source coordinates", "error", err)
	}

	if !c.flows.current(flowPoint, gen) {
		c.tracker.Discard("predict")
		return model.LayerEntry{}, "", ErrSuperseded
	}

	color := c.settings.PaletteColor(ctx)
	entry := model.LayerEntry{
		ID:           model.NewLayerID(model.KindPredicted),
		Name:         fmt.Sprintf("Predicted Point %d", year),
		Kind:         model.KindPredicted,
		GeometryType: model.GeometryPoint,
		Features:     normalized,
		Visible:      true,
		Style:        model.Style{Color: color, Width: 6},
		Popup: model.PopupTemplate{
			Title:   "Predicted Coastal Point",
			Content: fmt.Sprintf("<b>Year:</b> %d", year),
		},
		SpatialReference: c.norm.TargetEPSG(),
	}

	added, status, err := c.registry.Add(ctx, entry)
	if err != nil {
		return model.LayerEntry{}, status, err
	}

	records := make([]report.PointRecord, 0, len(normalized))
	for _, f := range normalized {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		records = append(records, report.PointRecord{
			ID:     added.ID,
			Year:   year,
			X:      pt.X(),
			Y:      pt.Y(),
			Color:  color,
			Source: "remote",
			Inputs: in.inputs(),
		})
	}
	c.report.AddPoints(records...)
	c.rememberYear(ctx, config.KeyLastPointYear, year)
	return added, status, nil
}

// uploadResponse is what the upload service returns alongside the echo of
// the processed file.
type uploadResponse struct {
	FileName  string          `json:"fileName"`
	Data      json.RawMessage `json:"data"`
	LayerInfo struct {
		GeometryType string `json:"geometryType"`
		DataType     string `json:"dataType"`
		RecordCount  int    `json:"recordCount"`
	} `json:"layer_info"`
}

// Upload sends a user file to the upload service and registers the
// processed result as an uploaded layer. When the service is unreachable
// the file is parsed locally instead.
func (c *Coordinator) Upload(ctx context.Context, filename string, data []byte) (model.LayerEntry, registry.PersistStatus, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".geojson", ".json":
	default:
		return model.LayerEntry{}, "", fmt.Errorf("%w: unsupported file type %q", model.ErrValidation, ext)
	}

	gen := c.flows.begin(flowUpload)
	defer c.flows.end(flowUpload, gen)

	var features []model.Feature
	declared := 0

	body, contentType, err := multipartFile(filename, ext, data)
	if err != nil {
		return model.LayerEntry{}, "", err
	}
	resp, err := c.client.PostMultipart(ctx, c.cfg.UploadURL, contentType, body)
	if err == nil {
		var ur uploadResponse
		if err := json.Unmarshal(resp, &ur); err != nil || len(ur.Data) == 0 {
			return model.LayerEntry{}, "", fmt.Errorf("upload %s: %w", filename, model.ErrMalformedResponse)
		}
		features, declared, err = ParseFeatureCollection(ur.Data)
		if err != nil {
			return model.LayerEntry{}, "", fmt.Errorf("upload %s: %w", filename, err)
		}
	} else {
		slog.Warn("upload service unavailable, parsing locally", "file", filename, "error", err)
		if ext == ".csv" {
			features, err = ParseCSV(data)
		} else {
			features, declared, err = ParseFeatureCollection(data)
		}
		if err != nil {
			return model.LayerEntry{}, "", fmt.Errorf("upload %s: %w", filename, err)
		}
	}
	if len(features) == 0 {
		return model.LayerEntry{}, "", fmt.Errorf("upload %s: %w: no features", filename, model.ErrValidation)
	}

	normalized, err := c.norm.Normalize(features, declared)
	if err != nil {
		slog.Warn("normalization failed, keeping source coordinates", "error", err)
	}

	if !c.flows.current(flowUpload, gen) {
		c.tracker.Discard("predict")
		return model.LayerEntry{}, "", ErrSuperseded
	}

	geomType, err := model.GeometryTypeOf(normalized[0].Geometry)
	if err != nil {
		return model.LayerEntry{}, "", err
	}

	name := strings.TrimSuffix(filepath.Base(filename), ext)
	entry := model.LayerEntry{
		ID:           model.NewLayerID(model.KindUploaded),
		Name:         name,
		Kind:         model.KindUploaded,
		GeometryType: geomType,
		Features:     normalized,
		Visible:      true,
		Style:        model.Style{Color: c.settings.PaletteColor(ctx), Width: 2, FillOpacity: 0.3},
		Popup: model.PopupTemplate{
			Title: name,
		},
		SpatialReference: c.norm.TargetEPSG(),
	}
	return c.registry.Add(ctx, entry)
}

// FetchBaseSegments loads the surveyed shoreline and installs it as the
// base layer. Responses are cached, so the map still has its base layer
// when the segments service is down.
func (c *Coordinator) FetchBaseSegments(ctx context.Context) error {
	data, err := c.client.Get(ctx, c.cfg.SegmentsURL, "coastline:segments")
	if err != nil {
		return fmt.Errorf("fetch segments: %w", err)
	}

	features, err := ParseSegments(data)
	if err != nil {
		return fmt.Errorf("fetch segments: %w", err)
	}
	if len(features) == 0 {
		return fmt.Errorf("fetch segments: %w: empty collection", model.ErrMalformedResponse)
	}

	// The segments service publishes UTM 35N without declaring it.
	normalized, err := c.norm.Normalize(features, crs.EPSGAnalytic)
	if err != nil {
		slog.Warn("normalization failed, keeping source coordinates", "error", err)
	}

	entry := model.LayerEntry{
		ID:           "base_shoreline_segments",
		Name:         "Shoreline Segments",
		Kind:         model.KindBase,
		GeometryType: model.GeometryLine,
		Features:     normalized,
		Visible:      c.settings.ShowBaseLayer(ctx),
		Style:        model.Style{Color: "#2196F3", Width: 4},
		Popup: model.PopupTemplate{
			Title:   "Shoreline Segment",
			Content: "<b>Date:</b> {date}<br/><b>Uncertainty:</b> {uncertainty}",
		},
		SpatialReference: c.norm.TargetEPSG(),
	}
	if err := c.registry.SetBase(entry); err != nil && !errors.Is(err, registry.ErrBaseExists) {
		return err
	}
	return nil
}

// FetchBuildings loads the building footprints used for risk assessment.
func (c *Coordinator) FetchBuildings(ctx context.Context) ([]model.Feature, error) {
	u, err := buildingsQueryURL(c.cfg.BuildingsURL)
	if err != nil {
		return nil, err
	}

	data, err := c.client.Get(ctx, u, "buildings:all")
	if err != nil {
		return nil, fmt.Errorf("fetch buildings: %w", err)
	}

	features, declared, err := ParseFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("fetch buildings: %w", err)
	}
	if declared == 0 {
		declared = crs.EPSGWGS84 // outSR pins the response to WGS84
	}

	normalized, err := c.norm.Normalize(features, declared)
	if err != nil {
		return nil, fmt.Errorf("fetch buildings: %w", err)
	}
	return normalized, nil
}

func buildingsQueryURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: buildings url: %v", model.ErrValidation, err)
	}
	q := u.Query()
	if q.Get("where") == "" {
		q.Set("where", "1=1")
		q.Set("outFields", "*")
		q.Set("f", "geojson")
		q.Set("outSR", strconv.Itoa(crs.EPSGWGS84))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Coordinator) rememberYear(ctx context.Context, key string, year int) {
	if c.state == nil {
		return
	}
	if err := c.state.SetState(ctx, key, strconv.Itoa(year)); err != nil {
		slog.Debug("failed to persist last prediction year", "key", key, "error", err)
	}
}

func validateYear(year int) error {
	if year < 2026 || year > 2100 {
		return fmt.Errorf("%w: year %d out of range [2026, 2100]", model.ErrValidation, year)
	}
	return nil
}
