// Package model defines the feature records shared across the service.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
)

// Kind names a feature layer. It doubles as the GeoServer feature type name.
type Kind string

const (
	KindFactories Kind = "factories"
	KindRoads     Kind = "roads"
	KindForests   Kind = "forests"
)

// Kinds lists every layer in display order.
var Kinds = []Kind{KindForests, KindRoads, KindFactories}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFactories, KindRoads, KindForests:
		return k, nil
	default:
		return "", fmt.Errorf("unknown layer %q", s)
	}
}

func (k Kind) GeometryType() geom.Type {
	switch k {
	case KindFactories:
		return geom.TypePoint
	case KindRoads:
		return geom.TypeLineString
	case KindForests:
		return geom.TypePolygon
	default:
		return ""
	}
}

// Feature is one geographic record with flat attributes and a single geometry.
type Feature interface {
	FeatureID() int64
	Kind() Kind
	// Properties returns every domain attribute, including id, keyed by its
	// GeoJSON property name.
	Properties() map[string]any
	// Geometry may be nil for an incomplete record.
	Geometry() geom.Geometry
}

type Factory struct {
	ID              int64
	Name            string
	IndustryType    string
	Capacity        int
	EstablishedYear int
	Status          string
	Location        geom.Point
}

func (f Factory) FeatureID() int64 { return f.ID }
func (Factory) Kind() Kind         { return KindFactories }

func (f Factory) Properties() map[string]any {
	return map[string]any{
		"id":              f.ID,
		"name":            f.Name,
		"industryType":    f.IndustryType,
		"capacity":        f.Capacity,
		"establishedYear": f.EstablishedYear,
		"status":          f.Status,
	}
}

func (f Factory) Geometry() geom.Geometry { return f.Location }

type Road struct {
	ID          int64
	Name        string
	RoadType    string
	LengthKm    float64
	SurfaceType string
	MaxSpeed    int
	Path        geom.LineString
}

func (r Road) FeatureID() int64 { return r.ID }
func (Road) Kind() Kind         { return KindRoads }

func (r Road) Properties() map[string]any {
	return map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"roadType":    r.RoadType,
		"lengthKm":    r.LengthKm,
		"surfaceType": r.SurfaceType,
		"maxSpeed":    r.MaxSpeed,
	}
}

func (r Road) Geometry() geom.Geometry {
	if len(r.Path.Points()) == 0 {
		return nil
	}
	return r.Path
}

type Forest struct {
	ID               int64
	Name             string
	ForestType       string
	AreaHectares     float64
	Density          string
	ProtectionStatus string
	Center           *geom.Point
	Ring             *geom.Polygon
}

func (f Forest) FeatureID() int64 { return f.ID }
func (Forest) Kind() Kind         { return KindForests }

func (f Forest) Properties() map[string]any {
	return map[string]any{
		"id":               f.ID,
		"name":             f.Name,
		"forestType":       f.ForestType,
		"areaHectares":     f.AreaHectares,
		"density":          f.Density,
		"protectionStatus": f.ProtectionStatus,
	}
}

// Geometry prefers the explicit ring and degrades to a small square around
// the center. With neither it returns nil.
func (f Forest) Geometry() geom.Geometry {
	if f.Ring != nil {
		return *f.Ring
	}
	if f.Center != nil {
		return geom.SquareAround(*f.Center, geom.FallbackDelta)
	}
	return nil
}

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// SyncOperation is handed to the dispatcher once per mutating call and
// discarded after it ran.
type SyncOperation struct {
	ID      string
	Kind    Kind
	Op      Op
	Feature Feature
	At      time.Time
}
