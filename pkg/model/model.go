package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// LayerKind describes the provenance of a map layer.
type LayerKind string

const (
	KindBase      LayerKind = "base"
	KindUploaded  LayerKind = "uploaded"
	KindPredicted LayerKind = "predicted"
)

// GeometryType is the tagged variant of supported geometry shapes.
type GeometryType string

const (
	GeometryPoint   GeometryType = "point"
	GeometryLine    GeometryType = "line"
	GeometryPolygon GeometryType = "polygon"
)

// GeometryTypeOf maps an orb geometry onto the tagged variant.
// Multi-geometries collapse onto their member type.
func GeometryTypeOf(g orb.Geometry) (GeometryType, error) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeometryPoint, nil
	case orb.LineString, orb.MultiLineString:
		return GeometryLine, nil
	case orb.Polygon, orb.MultiPolygon:
		return GeometryPolygon, nil
	case orb.Ring:
		return GeometryPolygon, nil
	default:
		return "", fmt.Errorf("%w: unsupported geometry %T", ErrMalformedResponse, g)
	}
}

// Feature is one geometry plus its attribute record, expressed in the
// working CRS once it has passed through the normalizer.
type Feature struct {
	Geometry   orb.Geometry   `json:"geometry"`
	Attributes map[string]any `json:"attributes"`
}

// Style holds the rendering parameters chosen at layer creation.
// Fixed thereafter; visibility is the only mutable display flag.
type Style struct {
	Color       string  `json:"color"`
	Width       float64 `json:"width"`
	Dashed      bool    `json:"dashed"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
}

// PopupTemplate mirrors the popup definition the map UI renders.
type PopupTemplate struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// LayerEntry is one managed map layer.
type LayerEntry struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         LayerKind     `json:"kind"`
	GeometryType GeometryType  `json:"geometryType"`
	Features     []Feature     `json:"features"`
	Visible      bool          `json:"visible"`
	Style        Style         `json:"style"`
	Popup        PopupTemplate `json:"popup"`
	// EPSG code the features are expressed in after normalization.
	SpatialReference int       `json:"spatialReference"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewLayerID builds a unique, kind-prefixed layer identifier.
func NewLayerID(kind LayerKind) string {
	return fmt.Sprintf("%s_%s", kind, uuid.NewString())
}

// FieldDef describes one attribute column of a persisted layer.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PersistedLayer is the storage-layout shape of a non-base layer.
// Field names match the snapshot the map UI reconstructs renderers from.
type PersistedLayer struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Type             LayerKind     `json:"type"`
	Visible          bool          `json:"visible"`
	Features         []Feature     `json:"features"`
	Fields           []FieldDef    `json:"fields"`
	ObjectIDField    string        `json:"objectIdField"`
	GeometryType     GeometryType  `json:"geometryType"`
	SpatialReference int           `json:"spatialReference"`
	Renderer         Style         `json:"renderer"`
	PopupTemplate    PopupTemplate `json:"popupTemplate"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// ToPersisted converts a registry entry into its storage record.
func (e *LayerEntry) ToPersisted() PersistedLayer {
	fields := []FieldDef{{Name: "ObjectID", Type: "oid"}}
	if len(e.Features) > 0 {
		for name := range e.Features[0].Attributes {
			if name == "ObjectID" {
				continue
			}
			fields = append(fields, FieldDef{Name: name, Type: "string"})
		}
	}
	return PersistedLayer{
		ID:               e.ID,
		Name:             e.Name,
		Type:             e.Kind,
		Visible:          e.Visible,
		Features:         e.Features,
		Fields:           fields,
		ObjectIDField:    "ObjectID",
		GeometryType:     e.GeometryType,
		SpatialReference: e.SpatialReference,
		Renderer:         e.Style,
		PopupTemplate:    e.Popup,
		CreatedAt:        e.CreatedAt,
	}
}

// ToEntry rebuilds a registry entry from literal persisted fields.
func (p *PersistedLayer) ToEntry() LayerEntry {
	return LayerEntry{
		ID:               p.ID,
		Name:             p.Name,
		Kind:             p.Type,
		GeometryType:     p.GeometryType,
		Features:         p.Features,
		Visible:          p.Visible,
		Style:            p.Renderer,
		Popup:            p.PopupTemplate,
		SpatialReference: p.SpatialReference,
		CreatedAt:        p.CreatedAt,
	}
}
