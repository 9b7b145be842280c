// Package geom holds the three geometry kinds features are stored with.
// Coordinates are EPSG:4326 with x = longitude and y = latitude.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

type Type string

const (
	TypePoint      Type = "Point"
	TypeLineString Type = "LineString"
	TypePolygon    Type = "Polygon"
)

// FallbackDelta is the half-width in degrees of the square used when a polygon
// has no usable ring.
const FallbackDelta = 0.001

var (
	ErrTooFewPoints      = errors.New("too few points")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Geometry is implemented by Point, LineString and Polygon only.
type Geometry interface {
	Type() Type
	Bound() orb.Bound
	isGeometry()
}

type Point struct {
	X, Y float64
}

func NewPoint(x, y float64) (Point, error) {
	if err := checkXY(x, y); err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

func (Point) Type() Type { return TypePoint }

func (p Point) Bound() orb.Bound { return orb.Point{p.X, p.Y}.Bound() }

func (Point) isGeometry() {}

type LineString struct {
	points []Point
}

// NewLineString needs at least two points.
func NewLineString(pts []Point) (LineString, error) {
	if len(pts) < 2 {
		return LineString{}, fmt.Errorf("linestring has %d points, need >= 2: %w", len(pts), ErrTooFewPoints)
	}
	for i, p := range pts {
		if err := checkXY(p.X, p.Y); err != nil {
			return LineString{}, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return LineString{points: clonePoints(pts)}, nil
}

func (LineString) Type() Type { return TypeLineString }

// Points returns a copy of the vertices.
func (l LineString) Points() []Point { return clonePoints(l.points) }

func (l LineString) Bound() orb.Bound { return toOrbRing(l.points).Bound() }

func (LineString) isGeometry() {}

type Polygon struct {
	ring []Point
}

// NewPolygon closes an open ring by repeating its first point, then requires
// at least four points.
func NewPolygon(ring []Point) (Polygon, error) {
	if len(ring) == 0 {
		return Polygon{}, fmt.Errorf("polygon ring is empty: %w", ErrTooFewPoints)
	}
	for i, p := range ring {
		if err := checkXY(p.X, p.Y); err != nil {
			return Polygon{}, fmt.Errorf("ring point %d: %w", i, err)
		}
	}
	closed := clonePoints(ring)
	if closed[0] != closed[len(closed)-1] {
		closed = append(closed, closed[0])
	}
	if len(closed) < 4 {
		return Polygon{}, fmt.Errorf("polygon ring has %d points, need >= 4: %w", len(closed), ErrTooFewPoints)
	}
	return Polygon{ring: closed}, nil
}

// SquareAround returns the closed square [x-d,y-d]..[x+d,y+d] around c.
func SquareAround(c Point, d float64) Polygon {
	return Polygon{ring: []Point{
		{X: c.X - d, Y: c.Y - d},
		{X: c.X + d, Y: c.Y - d},
		{X: c.X + d, Y: c.Y + d},
		{X: c.X - d, Y: c.Y + d},
		{X: c.X - d, Y: c.Y - d},
	}}
}

func (Polygon) Type() Type { return TypePolygon }

// Ring returns a copy of the closed exterior ring.
func (p Polygon) Ring() []Point { return clonePoints(p.ring) }

func (p Polygon) Bound() orb.Bound { return toOrbRing(p.ring).Bound() }

func (Polygon) isGeometry() {}

// Orb converts g for callers that need orb's geometry operations.
func Orb(g Geometry) orb.Geometry {
	switch v := g.(type) {
	case Point:
		return orb.Point{v.X, v.Y}
	case LineString:
		return orb.LineString(toOrbRing(v.points))
	case Polygon:
		return orb.Polygon{toOrbRing(v.ring)}
	default:
		return nil
	}
}

func checkXY(x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("non-finite coordinate (%v,%v): %w", x, y, ErrInvalidCoordinate)
	}
	if x < -180 || x > 180 {
		return fmt.Errorf("longitude %v out of [-180,180]: %w", x, ErrInvalidCoordinate)
	}
	if y < -90 || y > 90 {
		return fmt.Errorf("latitude %v out of [-90,90]: %w", y, ErrInvalidCoordinate)
	}
	return nil
}

func clonePoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}

func toOrbRing(pts []Point) orb.Ring {
	r := make(orb.Ring, len(pts))
	for i, p := range pts {
		r[i] = orb.Point{p.X, p.Y}
	}
	return r
}
