package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseRing decodes a JSON-encoded ring. Both a bare ring [[x,y],...] and a
// GeoJSON polygon coordinate array [[[x,y],...]] are accepted; for the latter
// only the exterior ring is used.
func ParseRing(raw string) ([]Point, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty ring")
	}
	var ring [][]float64
	if err := json.Unmarshal([]byte(raw), &ring); err == nil {
		return pairs(ring)
	}
	var rings [][][]float64
	if err := json.Unmarshal([]byte(raw), &rings); err != nil {
		return nil, fmt.Errorf("parse ring: %w", err)
	}
	if len(rings) == 0 {
		return nil, errors.New("polygon has no rings")
	}
	return pairs(rings[0])
}

// ParsePositions decodes [[x,y],...].
func ParsePositions(coords [][]float64) ([]Point, error) {
	return pairs(coords)
}

func pairs(coords [][]float64) ([]Point, error) {
	out := make([]Point, 0, len(coords))
	for i, xy := range coords {
		if len(xy) != 2 {
			return nil, fmt.Errorf("position %d must be [x,y], got %d values", i, len(xy))
		}
		out = append(out, Point{X: xy[0], Y: xy[1]})
	}
	return out, nil
}

// Positions renders pts as [[x,y],...] for JSON.
func Positions(pts []Point) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}
