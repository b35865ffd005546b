// Package registry tracks all managed map layers: the base shoreline plus
// uploaded and predicted overlays.
package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"coastwatch/pkg/model"
)

// PersistStatus tells the caller whether a mutation reached durable storage.
// The in-memory registry is authoritative either way.
type PersistStatus string

const (
	Persisted  PersistStatus = "persisted"
	MemoryOnly PersistStatus = "memory_only"
)

// ErrBaseExists is returned when a second base layer is installed.
var ErrBaseExists = errors.New("registry: base layer already present")

// Snapshotter mirrors non-base entries to durable storage. The snapshot is
// always the full ordered sequence, not a diff.
type Snapshotter interface {
	SaveLayers(ctx context.Context, layers []model.PersistedLayer) error
	LoadLayers(ctx context.Context) ([]model.PersistedLayer, error)
}

// Event describes a registry mutation for live subscribers.
type Event struct {
	Action  string          `json:"action"` // "added", "removed", "visibility", "cleared"
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Kind    model.LayerKind `json:"kind,omitempty"`
	Visible bool            `json:"visible,omitempty"`
}

// Registry holds the ordered layer list. All mutation is append or
// remove-by-id; feature geometry is never modified in place.
type Registry struct {
	mu      sync.RWMutex
	entries []model.LayerEntry
	snap    Snapshotter

	subMu sync.RWMutex
	subs  map[chan Event]struct{}
}

// New creates an empty registry backed by the given snapshotter.
func New(snap Snapshotter) *Registry {
	return &Registry{
		snap: snap,
		subs: make(map[chan Event]struct{}),
	}
}

// SetBase installs the single base layer. It fails if one is already
// present; the base entry is never mirrored to storage.
func (r *Registry) SetBase(entry model.LayerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Kind == model.KindBase {
			return ErrBaseExists
		}
	}
	entry.Kind = model.KindBase
	// Base goes first so rendering order stays stable.
	r.entries = append([]model.LayerEntry{entry}, r.entries...)
	r.publish(Event{Action: "added", ID: entry.ID, Name: entry.Name, Kind: entry.Kind})
	return nil
}

// Add appends a non-base entry. A duplicate id is regenerated
// deterministically by suffixing the first free ordinal. The snapshot write
// is best-effort: on failure the entry stays in memory and the returned
// status says so.
func (r *Registry) Add(ctx context.Context, entry model.LayerEntry) (model.LayerEntry, PersistStatus, error) {
	if entry.Kind == model.KindBase {
		return model.LayerEntry{}, MemoryOnly, fmt.Errorf("registry: base layers are installed via SetBase")
	}
	r.mu.Lock()
	entry.ID = r.uniqueIDLocked(entry.ID)
	r.entries = append(r.entries, entry)
	status := r.snapshotLocked(ctx)
	r.mu.Unlock()

	r.publish(Event{Action: "added", ID: entry.ID, Name: entry.Name, Kind: entry.Kind, Visible: entry.Visible})
	return entry, status, nil
}

// Remove deletes a non-base entry from memory and storage in one step.
// Removing the base layer (or an unknown id) is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) (PersistStatus, bool) {
	r.mu.Lock()
	idx := -1
	for i, e := range r.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || r.entries[idx].Kind == model.KindBase {
		r.mu.Unlock()
		return Persisted, false
	}
	removed := r.entries[idx]
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	status := r.snapshotLocked(ctx)
	r.mu.Unlock()

	r.publish(Event{Action: "removed", ID: removed.ID, Name: removed.Name, Kind: removed.Kind})
	return status, true
}

// SetVisible flips the display flag only. Geometry and style are untouched.
func (r *Registry) SetVisible(id string, visible bool) bool {
	r.mu.Lock()
	found := false
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Visible = visible
			found = true
			break
		}
	}
	r.mu.Unlock()
	if found {
		r.publish(Event{Action: "visibility", ID: id, Visible: visible})
	}
	return found
}

// ClearAll removes every non-base entry in one atomic step. Confirmation is
// the caller's concern.
func (r *Registry) ClearAll(ctx context.Context) PersistStatus {
	r.mu.Lock()
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if e.Kind == model.KindBase {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	status := r.snapshotLocked(ctx)
	r.mu.Unlock()

	r.publish(Event{Action: "cleared"})
	return status
}

// Get returns an entry by id.
func (r *Registry) Get(id string) (model.LayerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.LayerEntry{}, false
}

// List returns the entries in registry order.
func (r *Registry) List() []model.LayerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.LayerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ListByKind yields entries of the given kind in registry order. The view is
// lazy and restartable; it snapshots the registry at iteration start.
func (r *Registry) ListByKind(kind model.LayerKind) iter.Seq[model.LayerEntry] {
	return func(yield func(model.LayerEntry) bool) {
		for _, e := range r.List() {
			if e.Kind != kind {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// PredictedLines collects the polylines of every predicted line-type layer.
// Only those participate in risk-distance queries.
func (r *Registry) PredictedLines() []orb.LineString {
	var lines []orb.LineString
	for e := range r.ListByKind(model.KindPredicted) {
		if e.GeometryType != model.GeometryLine {
			continue
		}
		for _, f := range e.Features {
			switch g := f.Geometry.(type) {
			case orb.LineString:
				lines = append(lines, g)
			case orb.MultiLineString:
				lines = append(lines, g...)
			}
		}
	}
	return lines
}

// Hydrate reconstructs persisted entries in storage order. Corrupt or
// missing storage loads as empty; it is never surfaced as an error.
func (r *Registry) Hydrate(ctx context.Context) int {
	if r.snap == nil {
		return 0
	}
	persisted, err := r.snap.LoadLayers(ctx)
	if err != nil {
		slog.Warn("registry: snapshot load failed, starting empty", "error", err)
		return 0
	}
	r.mu.Lock()
	for _, p := range persisted {
		if p.Type == model.KindBase {
			continue
		}
		e := p.ToEntry()
		e.ID = r.uniqueIDLocked(e.ID)
		r.entries = append(r.entries, e)
	}
	n := len(persisted)
	r.mu.Unlock()
	return n
}

// Subscribe returns a buffered event channel and its cancel func.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	return ch, func() {
		r.subMu.Lock()
		delete(r.subs, ch)
		r.subMu.Unlock()
		close(ch)
	}
}

func (r *Registry) publish(e Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- e:
		default:
			// Subscriber too slow, skip.
		}
	}
}

// uniqueIDLocked returns id, or the first free "id_N" if taken.
func (r *Registry) uniqueIDLocked(id string) string {
	taken := func(candidate string) bool {
		for _, e := range r.entries {
			if e.ID == candidate {
				return true
			}
		}
		return false
	}
	if !taken(id) {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// snapshotLocked mirrors the non-base entries to storage. Failures are
// logged and reported as MemoryOnly, never propagated.
func (r *Registry) snapshotLocked(ctx context.Context) PersistStatus {
	if r.snap == nil {
		return MemoryOnly
	}
	persisted := make([]model.PersistedLayer, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Kind == model.KindBase {
			continue
		}
		persisted = append(persisted, e.ToPersisted())
	}
	if err := r.snap.SaveLayers(ctx, persisted); err != nil {
		slog.Warn("registry: snapshot write failed, in-memory state remains authoritative", "error", err)
		return MemoryOnly
	}
	return Persisted
}
