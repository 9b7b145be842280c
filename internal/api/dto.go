package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

// Request bodies accept both the short and the long attribute names. When
// both are present the long one wins.

type factoryBody struct {
	Name            *string  `json:"name"`
	IndustryType    *string  `json:"industryType"`
	Type            *string  `json:"type"`
	Capacity        *int     `json:"capacity"`
	EstablishedYear *int     `json:"establishedYear"`
	Status          *string  `json:"status"`
	Longitude       *float64 `json:"longitude"`
	Latitude        *float64 `json:"latitude"`
}

type roadBody struct {
	Name        *string     `json:"name"`
	Type        *string     `json:"type"`
	RoadType    *string     `json:"roadType"`
	Material    *string     `json:"material"`
	SurfaceType *string     `json:"surfaceType"`
	Length      *float64    `json:"length"`
	LengthKm    *float64    `json:"lengthKm"`
	MaxSpeed    *int        `json:"maxSpeed"`
	StartLat    *float64    `json:"startLat"`
	StartLng    *float64    `json:"startLng"`
	EndLat      *float64    `json:"endLat"`
	EndLng      *float64    `json:"endLng"`
	Coordinates [][]float64 `json:"coordinates"`
}

type forestBody struct {
	Name             *string         `json:"name"`
	Type             *string         `json:"type"`
	ForestType       *string         `json:"forestType"`
	Area             *float64        `json:"area"`
	AreaHectares     *float64        `json:"areaHectares"`
	Density          *string         `json:"density"`
	Status           *string         `json:"status"`
	ProtectionStatus *string         `json:"protectionStatus"`
	CenterLat        *float64        `json:"centerLat"`
	CenterLng        *float64        `json:"centerLng"`
	Coordinates      json.RawMessage `json:"coordinates"`
}

type factoryJSON struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	IndustryType    string  `json:"industryType"`
	Capacity        int     `json:"capacity"`
	EstablishedYear int     `json:"establishedYear"`
	Status          string  `json:"status"`
	Longitude       float64 `json:"longitude"`
	Latitude        float64 `json:"latitude"`
}

type roadJSON struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Material    string      `json:"material"`
	Length      float64     `json:"length"`
	MaxSpeed    int         `json:"maxSpeed"`
	StartLat    *float64    `json:"startLat"`
	StartLng    *float64    `json:"startLng"`
	EndLat      *float64    `json:"endLat"`
	EndLng      *float64    `json:"endLng"`
	Coordinates [][]float64 `json:"coordinates"`
}

type forestJSON struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Area        float64  `json:"area"`
	Density     string   `json:"density"`
	Status      string   `json:"status"`
	CenterLat   *float64 `json:"centerLat"`
	CenterLng   *float64 `json:"centerLng"`
	Coordinates *string  `json:"coordinates"`
}

var errNameRequired = errors.New("name is required")

func str(ps ...*string) string {
	for _, p := range ps {
		if p != nil {
			return strings.TrimSpace(*p)
		}
	}
	return ""
}

func num(ps ...*float64) float64 {
	for _, p := range ps {
		if p != nil {
			return *p
		}
	}
	return 0
}

func integer(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func requireName(p *string) (string, error) {
	if p == nil || strings.TrimSpace(*p) == "" {
		return "", errNameRequired
	}
	return strings.TrimSpace(*p), nil
}

func (b factoryBody) toModel() (model.Factory, error) {
	name, err := requireName(b.Name)
	if err != nil {
		return model.Factory{}, err
	}
	if b.Longitude == nil || b.Latitude == nil {
		return model.Factory{}, errors.New("longitude and latitude are required")
	}
	pt, err := geom.NewPoint(*b.Longitude, *b.Latitude)
	if err != nil {
		return model.Factory{}, err
	}
	return model.Factory{
		Name:            name,
		IndustryType:    str(b.IndustryType, b.Type),
		Capacity:        integer(b.Capacity),
		EstablishedYear: integer(b.EstablishedYear),
		Status:          str(b.Status),
		Location:        pt,
	}, nil
}

func factoryOut(f model.Factory) factoryJSON {
	return factoryJSON{
		ID:              f.ID,
		Name:            f.Name,
		IndustryType:    f.IndustryType,
		Capacity:        f.Capacity,
		EstablishedYear: f.EstablishedYear,
		Status:          f.Status,
		Longitude:       f.Location.X,
		Latitude:        f.Location.Y,
	}
}

// toModel takes the path from coordinates when given, otherwise from the
// start and end points.
func (b roadBody) toModel() (model.Road, error) {
	name, err := requireName(b.Name)
	if err != nil {
		return model.Road{}, err
	}
	var pts []geom.Point
	switch {
	case b.Coordinates != nil:
		if pts, err = geom.ParsePositions(b.Coordinates); err != nil {
			return model.Road{}, err
		}
	case b.StartLat != nil && b.StartLng != nil && b.EndLat != nil && b.EndLng != nil:
		pts = []geom.Point{{X: *b.StartLng, Y: *b.StartLat}, {X: *b.EndLng, Y: *b.EndLat}}
	default:
		return model.Road{}, errors.New("coordinates or startLat, startLng, endLat and endLng are required")
	}
	path, err := geom.NewLineString(pts)
	if err != nil {
		return model.Road{}, err
	}
	return model.Road{
		Name:        name,
		RoadType:    str(b.RoadType, b.Type),
		SurfaceType: str(b.SurfaceType, b.Material),
		LengthKm:    num(b.LengthKm, b.Length),
		MaxSpeed:    integer(b.MaxSpeed),
		Path:        path,
	}, nil
}

func roadOut(r model.Road) roadJSON {
	out := roadJSON{
		ID:       r.ID,
		Name:     r.Name,
		Type:     r.RoadType,
		Material: r.SurfaceType,
		Length:   r.LengthKm,
		MaxSpeed: r.MaxSpeed,
	}
	pts := r.Path.Points()
	if len(pts) > 0 {
		first, last := pts[0], pts[len(pts)-1]
		out.StartLat, out.StartLng = &first.Y, &first.X
		out.EndLat, out.EndLng = &last.Y, &last.X
		out.Coordinates = geom.Positions(pts)
	}
	return out
}

// toModel never rejects a bad ring: it logs and stores the fallback square
// around the center instead.
func (b forestBody) toModel(logger *slog.Logger) (model.Forest, error) {
	name, err := requireName(b.Name)
	if err != nil {
		return model.Forest{}, err
	}
	if b.CenterLat == nil || b.CenterLng == nil {
		return model.Forest{}, errors.New("centerLat and centerLng are required")
	}
	center, err := geom.NewPoint(*b.CenterLng, *b.CenterLat)
	if err != nil {
		return model.Forest{}, err
	}
	f := model.Forest{
		Name:             name,
		ForestType:       str(b.ForestType, b.Type),
		AreaHectares:     num(b.AreaHectares, b.Area),
		Density:          str(b.Density),
		ProtectionStatus: str(b.ProtectionStatus, b.Status),
		Center:           &center,
	}
	raw, err := ringText(b.Coordinates)
	if err == nil && raw == "" {
		return f, nil
	}
	var ring geom.Polygon
	if err == nil {
		ring, err = parsePolygon(raw)
	}
	if err != nil {
		logger.Warn("forest coordinates invalid, using fallback square", "name", name, "err", err)
		sq := geom.SquareAround(center, geom.FallbackDelta)
		f.Ring = &sq
		return f, nil
	}
	f.Ring = &ring
	return f, nil
}

// ringText accepts the ring either as a JSON-encoded string or inline.
func ringText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", nil
	}
	if s[0] == '"' {
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("coordinates: %w", err)
		}
		return out, nil
	}
	return s, nil
}

func parsePolygon(raw string) (geom.Polygon, error) {
	pts, err := geom.ParseRing(raw)
	if err != nil {
		return geom.Polygon{}, err
	}
	return geom.NewPolygon(pts)
}

func forestOut(f model.Forest) forestJSON {
	out := forestJSON{
		ID:      f.ID,
		Name:    f.Name,
		Type:    f.ForestType,
		Area:    f.AreaHectares,
		Density: f.Density,
		Status:  f.ProtectionStatus,
	}
	if f.Center != nil {
		lat, lng := f.Center.Y, f.Center.X
		out.CenterLat, out.CenterLng = &lat, &lng
	}
	if f.Ring != nil {
		if b, err := json.Marshal(geom.Positions(f.Ring.Ring())); err == nil {
			s := string(b)
			out.Coordinates = &s
		}
	}
	return out
}
