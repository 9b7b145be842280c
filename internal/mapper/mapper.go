// Package mapper converts feature geometries into H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/geosync/internal/core/geom"
)

type Interface interface {
	// Cells covers g at res and returns sorted, unique cell ids.
	Cells(g geom.Geometry, res int) ([]string, error)
}
