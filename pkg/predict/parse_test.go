package predict

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"coastwatch/pkg/model"
)

func TestParseFeatureCollection(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantEPSG  int
		wantErr   bool
	}{
		{
			name:      "plain wgs84",
			input:     `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[29.9,31.2]},"properties":{"id":1}}]}`,
			wantCount: 1,
			wantEPSG:  0,
		},
		{
			name:      "legacy crs member utm",
			input:     `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::32635"}},"features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[200000,3450000],[200100,3450100]]},"properties":{}}]}`,
			wantCount: 1,
			wantEPSG:  32635,
		},
		{
			name:      "crs84 treated as wgs84",
			input:     `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}},"features":[]}`,
			wantCount: 0,
			wantEPSG:  4326,
		},
		{
			name:      "null geometry skipped",
			input:     `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{}},{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`,
			wantCount: 1,
		},
		{
			name:    "not geojson",
			input:   `{"hello":"world"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, epsg, err := ParseFeatureCollection([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, model.ErrMalformedResponse) {
					t.Errorf("error should wrap ErrMalformedResponse, got %v", err)
				}
				return
			}
			if len(features) != tt.wantCount {
				t.Errorf("feature count = %d, want %d", len(features), tt.wantCount)
			}
			if epsg != tt.wantEPSG {
				t.Errorf("epsg = %d, want %d", epsg, tt.wantEPSG)
			}
		})
	}
}

func TestParseSegments(t *testing.T) {
	input := `{"type":"FeatureCollection","features":[
		{"geometry":"{\"type\":\"LineString\",\"coordinates\":[[200000,3450000],[200500,3450500]]}","properties":{"id":1,"date":"2020-04-01","uncertainty":3.2}},
		{"geometry":"","properties":{"id":2}}
	]}`

	features, err := ParseSegments([]byte(input))
	if err != nil {
		t.Fatalf("ParseSegments: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("feature count = %d, want 1 (empty geometry skipped)", len(features))
	}
	line, ok := features[0].Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("geometry type = %T, want LineString", features[0].Geometry)
	}
	if len(line) != 2 {
		t.Errorf("line points = %d, want 2", len(line))
	}
	if features[0].Attributes["date"] != "2020-04-01" {
		t.Errorf("attributes not carried: %v", features[0].Attributes)
	}
}

func TestParseSegmentsBadEmbeddedGeometry(t *testing.T) {
	input := `{"features":[{"geometry":"{not json","properties":{}}]}`
	_, err := ParseSegments([]byte(input))
	if !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "lon lat columns",
			input:     "name,longitude,latitude\na,29.9,31.2\nb,29.8,31.1\n",
			wantCount: 2,
		},
		{
			name:      "x y columns with bad row skipped",
			input:     "x,y,value\n200000,3450000,7\nnope,3450100,8\n",
			wantCount: 1,
		},
		{
			name:    "no coordinate columns",
			input:   "name,value\na,1\n",
			wantErr: true,
		},
		{
			name:    "header only",
			input:   "x,y\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, err := ParseCSV([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, model.ErrValidation) {
					t.Errorf("error should wrap ErrValidation, got %v", err)
				}
				return
			}
			if len(features) != tt.wantCount {
				t.Errorf("feature count = %d, want %d", len(features), tt.wantCount)
			}
			for _, f := range features {
				if _, ok := f.Geometry.(orb.Point); !ok {
					t.Errorf("geometry type = %T, want Point", f.Geometry)
				}
			}
		})
	}
}

func TestParseCSVAttributes(t *testing.T) {
	features, err := ParseCSV([]byte("station,x,y\nalex-01,29.9,31.2\n"))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if features[0].Attributes["station"] != "alex-01" {
		t.Errorf("attributes = %v, want station carried", features[0].Attributes)
	}
}
