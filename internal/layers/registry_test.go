package layers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mohammed-shakir/geosync/internal/core/config"
)

var gs = config.GeoServer{URL: "http://localhost:8080/geoserver", Workspace: "simple_map"}

func TestAll_FixedOrderAndURLs(t *testing.T) {
	all := New(gs).All()
	if len(all) != 3 {
		t.Fatalf("layers=%d want 3", len(all))
	}
	want := []string{"forests", "roads", "factories"}
	for i, d := range all {
		if d.Name != want[i] {
			t.Fatalf("layer %d=%q want %q", i, d.Name, want[i])
		}
		if d.WMSURL != "http://localhost:8080/geoserver/simple_map/wms" || d.WFSURL != "http://localhost:8080/geoserver/simple_map/wfs" {
			t.Fatalf("urls=%q %q", d.WMSURL, d.WFSURL)
		}
		if d.TypeName != "simple_map:"+want[i] {
			t.Fatalf("typeName=%q", d.TypeName)
		}
	}
	if all[0].Color != "#228b22" || all[1].Color != "#555555" || all[2].Color != "#ff6b35" {
		t.Fatalf("colors=%q %q %q", all[0].Color, all[1].Color, all[2].Color)
	}
	if all[0].GeometryKind != "Polygon" || all[1].GeometryKind != "LineString" || all[2].GeometryKind != "Point" {
		t.Fatalf("geometry kinds=%q %q %q", all[0].GeometryKind, all[1].GeometryKind, all[2].GeometryKind)
	}
}

func TestStyle_KnownAndUnknown(t *testing.T) {
	r := New(gs)
	if s := r.Style("roads"); s.Weight != 4 || s.StrokeColor != "#555555" {
		t.Fatalf("roads style=%+v", s)
	}
	if s := r.Style("factories"); s.Radius != 8 {
		t.Fatalf("factories style=%+v", s)
	}
	if s := r.Style("rivers"); s != DefaultStyle {
		t.Fatalf("unknown style=%+v want default", s)
	}
	if _, ok := r.Describe("rivers"); ok {
		t.Fatal("rivers should not be described")
	}
}

func TestCapabilitiesURL(t *testing.T) {
	u, ok := New(gs).CapabilitiesURL("forests")
	if !ok || u != "http://localhost:8080/geoserver/simple_map/wms?SERVICE=WMS&VERSION=1.3.0&REQUEST=GetCapabilities" {
		t.Fatalf("url=%q ok=%v", u, ok)
	}
}

func TestLoad_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	data := `layers:
  roads:
    displayName: Streets
    color: "#000000"
    style:
      weight: 6
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Load(gs, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, _ := r.Describe("roads")
	if d.DisplayName != "Streets" || d.Color != "#000000" {
		t.Fatalf("descriptor=%+v", d)
	}
	s := r.Style("roads")
	if s.Weight != 6 || s.StrokeColor != "#555555" {
		t.Fatalf("merged style=%+v", s)
	}
	if New(gs).Style("roads").Weight != 4 {
		t.Fatal("overrides must not leak into the built-in table")
	}
}

func TestLoad_UnknownLayerFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	if err := os.WriteFile(path, []byte("layers:\n  rivers:\n    color: blue\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(gs, path); err == nil {
		t.Fatal("expected error for unknown layer")
	}
}
