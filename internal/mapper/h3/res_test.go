package h3mapper

import (
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
)

func TestToParent(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 55.6050, Lng: 13.0038}, 9)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	p, err := m.ToParent(cell.String(), 7)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	want, _ := cell.Parent(7)
	if p != want.String() {
		t.Fatalf("parent=%s want %s", p, want)
	}
	if same, _ := m.ToParent(cell.String(), 9); same != cell.String() {
		t.Fatalf("same-res parent should be identity, got %s", same)
	}
	if _, err := m.ToParent(cell.String(), 10); err == nil {
		t.Fatal("expected error for parentRes > res")
	}
	if _, err := m.ToParent("not-a-cell", 5); err == nil {
		t.Fatal("expected error for invalid cell")
	}
}

func TestCoarsen_BoundsCellCount(t *testing.T) {
	m := New()
	poly, err := geom.NewPolygon([]geom.Point{
		{X: 17.95, Y: 59.30}, {X: 18.15, Y: 59.30}, {X: 18.15, Y: 59.40}, {X: 17.95, Y: 59.40},
	})
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}
	cells, err := m.Cells(poly, 10)
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if len(cells) <= 16 {
		t.Fatalf("test polygon too small: %d cells", len(cells))
	}
	out, res, err := m.Coarsen(cells, 10, 16)
	if err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	if len(out) > 16 || res >= 10 {
		t.Fatalf("coarsened to %d cells at res %d", len(out), res)
	}
	same, r, _ := m.Coarsen(out, res, 0)
	if r != res || len(same) != len(out) {
		t.Fatal("limit 0 must leave cells unchanged")
	}
}
