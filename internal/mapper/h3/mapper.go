package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/mapper"
)

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// average hexagon edge length in km per resolution
var edgeKm = [16]float64{
	1281.256, 483.057, 182.513, 68.979, 26.072, 9.854, 3.725, 1.406,
	0.531, 0.201, 0.076, 0.0287, 0.0108, 0.0041, 0.00155, 0.000584,
}

const (
	kmPerDegree       = 111.32
	maxSamplesSegment = 1000
)

func (m *Mapper) Cells(g geom.Geometry, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	switch v := g.(type) {
	case geom.Point:
		return cellsForPoints([]geom.Point{v}, res)
	case geom.LineString:
		return cellsForLine(v.Points(), res)
	case geom.Polygon:
		return cellsForPolygon(v.Ring(), res)
	case nil:
		return nil, errors.New("nil geometry")
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func cellsForPoints(pts []geom.Point, res int) ([]string, error) {
	set := make(map[string]struct{}, len(pts))
	for _, p := range pts {
		c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Y, Lng: p.X}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for %v,%v: %w", p.X, p.Y, err)
		}
		set[c.String()] = struct{}{}
	}
	return sorted(set), nil
}

// cellsForLine samples every segment at half the edge length so consecutive
// samples never skip a cell the segment crosses.
func cellsForLine(pts []geom.Point, res int) ([]string, error) {
	if len(pts) < 2 {
		return cellsForPoints(pts, res)
	}
	step := edgeKm[res] / 2 / kmPerDegree
	samples := make([]geom.Point, 0, len(pts))
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dist := math.Hypot(b.X-a.X, b.Y-a.Y)
		n := int(math.Ceil(dist / step))
		n = min(max(n, 1), maxSamplesSegment)
		for j := 0; j < n; j++ {
			t := float64(j) / float64(n)
			samples = append(samples, geom.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
		}
	}
	samples = append(samples, pts[len(pts)-1])
	return cellsForPoints(samples, res)
}

// cellsForPolygon polyfills the ring. Rings smaller than a cell fill nothing,
// in which case the vertices' cells are used.
func cellsForPolygon(ring []geom.Point, res int) ([]string, error) {
	loop := toLoop(ring)
	if len(loop) < 3 {
		return nil, errors.New("ring has < 3 distinct vertices")
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	if len(cells) == 0 {
		return cellsForPoints(ring, res)
	}
	set := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		set[c.String()] = struct{}{}
	}
	return sorted(set), nil
}

// toLoop drops the duplicated closing vertex h3 does not want.
func toLoop(ring []geom.Point) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Y, Lng: p.X})
	}
	if n := len(loop); n >= 2 && loop[0] == loop[n-1] {
		loop = loop[:n-1]
	}
	return loop
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
