// Package events announces committed feature changes on a Kafka topic so
// downstream caches and indexes can react without polling.
package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const Version = 1

type ChangeEvent struct {
	Version   int       `json:"version"`
	Op        string    `json:"op"`
	Layer     string    `json:"layer"`
	FeatureID int64     `json:"feature_id"`
	TS        time.Time `json:"ts"`
	Source    string    `json:"source,omitempty"`
	BBox      *BBox     `json:"bbox,omitempty"`
	H3Cells   []string  `json:"h3_cells,omitempty"`
	Res       int       `json:"res,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (e ChangeEvent) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("version must be %d", Version)
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return errors.New("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return errors.New("layer is required")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	if e.BBox != nil {
		bb := *e.BBox
		if bb.SRID != "EPSG:4326" {
			return errors.New("bbox.srid must be EPSG:4326")
		}
		if bb.X1 < -180 || bb.X2 > 180 || bb.Y1 < -90 || bb.Y2 > 90 {
			return errors.New("bbox out of range")
		}
		if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
			return errors.New("bbox must satisfy x2>=x1 and y2>=y1")
		}
	}
	return nil
}

// WireOp maps a sync operation to the event vocabulary.
func WireOp(op model.Op) string {
	switch op {
	case model.OpCreate:
		return "insert"
	case model.OpUpdate:
		return "update"
	case model.OpDelete:
		return "delete"
	default:
		return string(op)
	}
}

// CellMapper is satisfied by h3mapper.Mapper.
type CellMapper interface {
	Cells(g geom.Geometry, res int) ([]string, error)
	Coarsen(cells []string, res, limit int) ([]string, int, error)
}

// Builder turns a changed feature into an event. A nil Mapper leaves the
// cells out.
type Builder struct {
	Mapper   CellMapper
	Res      int
	MaxCells int
	Source   string
}

// Build never fails: geometry problems only drop bbox or cells.
func (b Builder) Build(op model.Op, f model.Feature, at time.Time) ChangeEvent {
	ev := ChangeEvent{
		Version:   Version,
		Op:        WireOp(op),
		Layer:     string(f.Kind()),
		FeatureID: f.FeatureID(),
		TS:        at.UTC(),
		Source:    b.Source,
	}
	g := f.Geometry()
	if g == nil {
		return ev
	}
	bd := g.Bound()
	ev.BBox = &BBox{X1: bd.Min[0], Y1: bd.Min[1], X2: bd.Max[0], Y2: bd.Max[1], SRID: "EPSG:4326"}
	if b.Mapper == nil {
		return ev
	}
	cells, err := b.Mapper.Cells(g, b.Res)
	if err != nil {
		return ev
	}
	cells, res, err := b.Mapper.Coarsen(cells, b.Res, b.MaxCells)
	if err != nil {
		return ev
	}
	ev.H3Cells, ev.Res = cells, res
	return ev
}
