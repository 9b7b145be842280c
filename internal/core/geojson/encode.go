// Package geojson renders feature records as GeoJSON (RFC 7946).
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature leaves Geometry nil, and the key out of the JSON, when the record
// has no geometry yet.
type Feature struct {
	Type       string         `json:"type"`
	ID         int64          `json:"id"`
	Properties map[string]any `json:"properties"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
}

type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Encode builds a FeatureCollection of the features of the given kind.
// Records of another kind are skipped. The result always has a non-nil
// features slice so an empty layer encodes as "features":[].
func Encode(features []model.Feature, kind model.Kind) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(features))}
	for _, f := range features {
		if f == nil || f.Kind() != kind {
			continue
		}
		fc.Features = append(fc.Features, EncodeFeature(f))
	}
	return fc
}

func EncodeFeature(f model.Feature) Feature {
	out := Feature{
		Type:       "Feature",
		ID:         f.FeatureID(),
		Properties: f.Properties(),
	}
	if g := f.Geometry(); g != nil {
		out.Geometry = EncodeGeometry(g)
	}
	return out
}

// EncodeGeometry returns nil for an unknown geometry type.
func EncodeGeometry(g geom.Geometry) *Geometry {
	switch v := g.(type) {
	case geom.Point:
		return &Geometry{Type: string(geom.TypePoint), Coordinates: []float64{v.X, v.Y}}
	case geom.LineString:
		return &Geometry{Type: string(geom.TypeLineString), Coordinates: geom.Positions(v.Points())}
	case geom.Polygon:
		return &Geometry{Type: string(geom.TypePolygon), Coordinates: [][][]float64{geom.Positions(v.Ring())}}
	default:
		return nil
	}
}

func Marshal(fc FeatureCollection) ([]byte, error) {
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return b, nil
}
