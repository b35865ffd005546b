package config

import (
	"context"
	"strconv"

	"coastwatch/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Assessment
	BufferDistance(ctx context.Context) float64

	// Prediction
	LastLineYear(ctx context.Context) int
	LastPointYear(ctx context.Context) int
	PaletteColor(ctx context.Context) string

	// UI
	Basemap(ctx context.Context) string
	ShowBaseLayer(ctx context.Context) bool

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) BufferDistance(ctx context.Context) float64 {
	fallback := 500.0
	if len(p.base.Assess.BufferDistances) > 0 {
		fallback = float64(p.base.Assess.BufferDistances[0])
	}
	return p.getFloat64(ctx, KeyBufferDistance, fallback)
}

func (p *UnifiedProvider) LastLineYear(ctx context.Context) int {
	return p.getInt(ctx, KeyLastLineYear, 2030)
}

func (p *UnifiedProvider) LastPointYear(ctx context.Context) int {
	return p.getInt(ctx, KeyLastPointYear, 2030)
}

// PaletteColor returns the next predicted-layer color and advances the
// persisted cursor, so colors stay distinct across restarts.
func (p *UnifiedProvider) PaletteColor(ctx context.Context) string {
	palette := p.base.Layers.Palette
	if len(palette) == 0 {
		return "#e6194b"
	}
	idx := p.getInt(ctx, KeyPaletteIndex, 0)
	if p.store != nil {
		_ = p.store.SetState(ctx, KeyPaletteIndex, strconv.Itoa(idx+1))
	}
	return palette[idx%len(palette)]
}

func (p *UnifiedProvider) Basemap(ctx context.Context) string {
	return p.getString(ctx, KeyBasemap, "satellite")
}

func (p *UnifiedProvider) ShowBaseLayer(ctx context.Context) bool {
	return p.getBool(ctx, KeyShowBaseLayer, true)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}
