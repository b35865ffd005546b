// Package report accumulates what happened during a session: predicted
// lines and points, risk checks, and the latest buffer/intersection summary.
// The log is append-only; only the buffer summary is replaced wholesale.
package report

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LineRecord is one successful line prediction.
type LineRecord struct {
	Year      int       `json:"year"`
	LayerID   string    `json:"layerId"`
	Color     string    `json:"color"`
	Features  int       `json:"features"`
	Timestamp time.Time `json:"timestamp"`
}

// PointRecord is one predicted coastal point.
type PointRecord struct {
	ID        string             `json:"id"`
	Year      int                `json:"year"`
	X         float64            `json:"x"`
	Y         float64            `json:"y"`
	Color     string             `json:"color"`
	Source    string             `json:"source"`
	Inputs    map[string]float64 `json:"inputData,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// RiskRecord is one risk-checker click.
type RiskRecord struct {
	DistanceMeters float64   `json:"distance"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// BufferSummary is the latest buffer/intersection outcome.
type BufferSummary struct {
	LayerID        string    `json:"layerId"`
	DistanceMeters float64   `json:"bufferDistance"`
	TotalBuildings int       `json:"totalBuildings"`
	AtRisk         int       `json:"atRiskBuildings"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot is a copy of the full report state.
type Snapshot struct {
	PredictedLines  []LineRecord   `json:"predictedLines"`
	PredictedPoints []PointRecord  `json:"predictedPoints"`
	RiskChecks      []RiskRecord   `json:"riskChecks"`
	Buffer          *BufferSummary `json:"bufferSummary,omitempty"`
}

// Accumulator lives for the duration of the session and resets on restart.
type Accumulator struct {
	mu    sync.Mutex
	clock clockwork.Clock

	lines  []LineRecord
	points []PointRecord
	risks  []RiskRecord
	buffer *BufferSummary
}

// New creates an empty accumulator using the real clock.
func New() *Accumulator {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock creates an accumulator with an injectable clock.
func NewWithClock(clock clockwork.Clock) *Accumulator {
	return &Accumulator{clock: clock}
}

// AddLine appends a line prediction record.
func (a *Accumulator) AddLine(rec LineRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.Timestamp = a.clock.Now()
	a.lines = append(a.lines, rec)
}

// AddPoints appends point prediction records.
func (a *Accumulator) AddPoints(recs ...PointRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	for _, rec := range recs {
		rec.Timestamp = now
		a.points = append(a.points, rec)
	}
}

// AddRiskCheck appends a risk-checker result.
func (a *Accumulator) AddRiskCheck(rec RiskRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.Timestamp = a.clock.Now()
	a.risks = append(a.risks, rec)
}

// SetBufferSummary replaces the buffer/intersection summary wholesale.
func (a *Accumulator) SetBufferSummary(s BufferSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s.Timestamp = a.clock.Now()
	a.buffer = &s
}

// ClearBufferSummary drops the summary, e.g. when the buffer is removed.
func (a *Accumulator) ClearBufferSummary() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = nil
}

// Snapshot returns a deep copy of the current report.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := Snapshot{
		PredictedLines:  append([]LineRecord(nil), a.lines...),
		PredictedPoints: append([]PointRecord(nil), a.points...),
		RiskChecks:      append([]RiskRecord(nil), a.risks...),
	}
	if a.buffer != nil {
		b := *a.buffer
		out.Buffer = &b
	}
	return out
}
