// Package store is the durable side of the layer registry: a sqlite-backed
// snapshot of non-base layers, a small state table, and a response cache.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"coastwatch/pkg/db"
	"coastwatch/pkg/model"
)

// LayerSnapshotKey is the fixed registry key the full layer sequence is
// stored under.
const LayerSnapshotKey = "layers:snapshot"

// Store composes the persistence interfaces the application depends on.
type Store interface {
	LayerStore
	CacheStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// LayerStore persists the ordered non-base layer sequence.
type LayerStore interface {
	SaveLayers(ctx context.Context, layers []model.PersistedLayer) error
	LoadLayers(ctx context.Context) ([]model.PersistedLayer, error)
}

// CacheStore caches raw response bodies.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// StateStore persists small key-value state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Layers ---

// SaveLayers writes the full ordered sequence under the fixed snapshot key.
// The snapshot is a whole-value replace, never a diff.
func (s *SQLiteStore) SaveLayers(ctx context.Context, layers []model.PersistedLayer) error {
	if layers == nil {
		layers = []model.PersistedLayer{}
	}
	raw, err := json.Marshal(layers)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", model.ErrPersistence, err)
	}

	// Transparent Compression
	if compressed, err := compress(raw); err == nil {
		raw = compressed
	}

	query := `INSERT OR REPLACE INTO layer_snapshot (key, value, updated_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, LayerSnapshotKey, raw, time.Now()); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", model.ErrPersistence, err)
	}
	return nil
}

// LoadLayers reconstructs the persisted sequence in storage order. Missing
// or corrupt storage yields an empty sequence, never an error the user sees;
// the error return exists so callers can log the reason.
func (s *SQLiteStore) LoadLayers(ctx context.Context) ([]model.PersistedLayer, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM layer_snapshot WHERE key = ?", LayerSnapshotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", model.ErrPersistence, err)
	}

	// Transparent Decompression
	if len(raw) > 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		if decompressed, err := decompress(raw); err == nil {
			raw = decompressed
		}
	}

	var layers []model.PersistedLayer
	if err := json.Unmarshal(raw, &layers); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot: %v", model.ErrPersistence, err)
	}
	return layers, nil
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}

	return val, true
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	// Transparent Compression
	if compressed, err := compress(val); err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Compression Pooling ---

var (
	// Pool for gzip writers to reuse flate state
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	// Pool for generic byte buffers
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)

	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
