package predict

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"coastwatch/pkg/config"
	"coastwatch/pkg/model"
)

// Runner executes the local prediction model as a subprocess. It is the
// fallback when the remote service is unreachable.
type Runner struct {
	cfg config.RunnerConfig
}

// NewRunner creates a runner from configuration.
func NewRunner(cfg config.RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Enabled reports whether the local fallback is configured.
func (r *Runner) Enabled() bool {
	return r.cfg.Enabled && r.cfg.Interpreter != "" && r.cfg.Script != ""
}

// Run invokes the model for the given year and loads the shapefile it
// produces. The script contract: print exactly one line, the output path,
// and exit 0.
func (r *Runner) Run(ctx context.Context, year int) ([]model.Feature, error) {
	if !r.Enabled() {
		return nil, fmt.Errorf("local predictor not configured")
	}

	timeout := time.Duration(r.cfg.Timeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.cfg.Interpreter, r.cfg.Script, strconv.Itoa(year))
	cmd.Dir = r.cfg.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		slog.Error("local predictor failed", "year", year, "stderr", strings.TrimSpace(stderr.String()), "error", err)
		return nil, fmt.Errorf("local predictor: %w", err)
	}
	slog.Info("local predictor finished", "year", year, "duration", time.Since(start))

	lines := nonEmptyLines(stdout.String())
	if len(lines) != 1 {
		return nil, fmt.Errorf("%w: predictor printed %d lines, want 1", model.ErrMalformedResponse, len(lines))
	}

	path := lines[0]
	if !filepath.IsAbs(path) && r.cfg.WorkDir != "" {
		path = filepath.Join(r.cfg.WorkDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: predictor output %s: %v", model.ErrMalformedResponse, path, err)
	}

	return LoadShapefile(path)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadShapefile reads a shapefile into features, carrying DBF attributes.
func LoadShapefile(path string) ([]model.Feature, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	var features []model.Feature
	for shape.Next() {
		n, p := shape.Shape()

		var geometry orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.PolyLine:
			geometry = convertPolyLine(s)
		case *shp.Polygon:
			geometry = convertPolygon(s)
		case *shp.Point:
			geometry = orb.Point{s.X, s.Y}
		default:
			slog.Debug("skipping unsupported shape type", "type", fmt.Sprintf("%T", p))
			continue
		}

		attrs := make(map[string]any, len(fieldNames))
		for i, name := range fieldNames {
			attrs[name] = shape.ReadAttribute(n, i)
		}
		features = append(features, model.Feature{Geometry: geometry, Attributes: attrs})
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	return features, nil
}

func convertPolyLine(s *shp.PolyLine) orb.MultiLineString {
	var multiline orb.MultiLineString
	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		var line orb.LineString
		for j := start; j < end; j++ {
			line = append(line, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		multiline = append(multiline, line)
	}
	return multiline
}

func convertPolygon(s *shp.Polygon) orb.Polygon {
	// Treats all parts as rings of a single polygon.
	var poly orb.Polygon
	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
