package model

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// featureJSON is the wire/storage shape of a Feature. The orb geometry is
// wrapped in its GeoJSON form so the record survives a JSON round trip.
type featureJSON struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Attributes map[string]any    `json:"attributes"`
}

// MarshalJSON implements json.Marshaler.
func (f Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{Attributes: f.Attributes}
	if f.Geometry != nil {
		out.Geometry = geojson.NewGeometry(f.Geometry)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var in featureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	f.Attributes = in.Attributes
	if in.Geometry != nil {
		f.Geometry = in.Geometry.Geometry()
	} else {
		f.Geometry = nil
	}
	return nil
}
