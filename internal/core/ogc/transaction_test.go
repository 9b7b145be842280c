package ogc

import (
	"encoding/xml"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const (
	nsWFS = "http://www.opengis.net/wfs"
	nsOGC = "http://www.opengis.net/ogc"
	nsGML = "http://www.opengis.net/gml"
	nsWS  = "http://localhost:8080/geoserver/simple_map"
)

// node is a generic XML tree used to check documents by parsing them back.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n node) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (n node) find(space, local string) (node, bool) {
	for _, c := range n.Children {
		if c.XMLName.Space == space && c.XMLName.Local == local {
			return c, true
		}
		if got, ok := c.find(space, local); ok {
			return got, true
		}
	}
	return node{}, false
}

func (n node) children(space string) []node {
	var out []node
	for _, c := range n.Children {
		if c.XMLName.Space == space {
			out = append(out, c)
		}
	}
	return out
}

func newBuilder(opts ...BuilderOption) *TemplateBuilder {
	return NewTemplateBuilder(Namespace{Prefix: "simple_map", URI: nsWS}, opts...)
}

func parseDoc(t *testing.T, doc string) node {
	t.Helper()
	var root node
	if err := xml.Unmarshal([]byte(doc), &root); err != nil {
		t.Fatalf("transaction is not well-formed XML: %v\n%s", err, doc)
	}
	if root.XMLName.Space != nsWFS || root.XMLName.Local != "Transaction" {
		t.Fatalf("root=%v want wfs:Transaction", root.XMLName)
	}
	if root.attr("version") != "1.1.0" || root.attr("service") != "WFS" {
		t.Fatalf("unexpected root attrs: %v", root.Attrs)
	}
	return root
}

func mustBuild(t *testing.T, b TransactionBuilder, op model.SyncOperation) string {
	t.Helper()
	doc, err := b.Build(op)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return doc
}

func parseTuples(t *testing.T, s string) []geom.Point {
	t.Helper()
	var out []geom.Point
	for _, tuple := range strings.Fields(s) {
		xy := strings.Split(tuple, ",")
		if len(xy) != 2 {
			t.Fatalf("bad tuple %q", tuple)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			t.Fatalf("x: %v", err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			t.Fatalf("y: %v", err)
		}
		out = append(out, geom.Point{X: x, Y: y})
	}
	return out
}

func sampleFeatures(t *testing.T) map[model.Kind]model.Feature {
	t.Helper()
	line, err := geom.NewLineString([]geom.Point{{X: 44.795, Y: 41.71}, {X: 44.815, Y: 41.718}})
	if err != nil {
		t.Fatalf("NewLineString: %v", err)
	}
	center := geom.Point{X: 44.8017, Y: 41.6953}
	return map[model.Kind]model.Feature{
		model.KindFactories: model.Factory{ID: 42, Name: "Wine", Location: geom.Point{X: 44.8271, Y: 41.7151}},
		model.KindRoads:     model.Road{ID: 42, Name: "Rustaveli", Path: line},
		model.KindForests:   model.Forest{ID: 42, Name: "Mtatsminda", Center: &center},
	}
}

func TestBuild_DeleteLiteralIsExactID(t *testing.T) {
	b := newBuilder()
	for kind, f := range sampleFeatures(t) {
		doc := mustBuild(t, b, model.SyncOperation{Kind: kind, Op: model.OpDelete, Feature: f})
		root := parseDoc(t, doc)

		del, ok := root.find(nsWFS, "Delete")
		if !ok {
			t.Fatalf("%s: no wfs:Delete in\n%s", kind, doc)
		}
		if got := del.attr("typeName"); got != "simple_map:"+string(kind) {
			t.Fatalf("%s: typeName=%q", kind, got)
		}
		if _, ok := root.find(nsWFS, "Insert"); ok {
			t.Fatalf("%s: delete must not carry an insert", kind)
		}
		eq, ok := del.find(nsOGC, "PropertyIsEqualTo")
		if !ok {
			t.Fatalf("%s: no ogc:PropertyIsEqualTo", kind)
		}
		name, _ := eq.find(nsOGC, "PropertyName")
		lit, _ := eq.find(nsOGC, "Literal")
		if name.Text != "id" {
			t.Fatalf("%s: property=%q want id", kind, name.Text)
		}
		if lit.Text != "42" {
			t.Fatalf("%s: literal=%q want 42", kind, lit.Text)
		}
	}
}

func TestBuild_EscapesStringAttributes(t *testing.T) {
	const name = `Tom & Jerry's "Factory" <v2>`
	f := model.Factory{ID: 1, Name: name, IndustryType: "Food & Beverage", Status: "Active", Location: geom.Point{X: 44.81, Y: 41.71}}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindFactories, Op: model.OpCreate, Feature: f})

	if !strings.Contains(doc, "Tom &amp; Jerry&apos;s &quot;Factory&quot; &lt;v2&gt;") {
		t.Fatalf("escaped name not found in\n%s", doc)
	}

	open, closeTag := "<simple_map:name>", "</simple_map:name>"
	i := strings.Index(doc, open)
	j := strings.Index(doc, closeTag)
	if i < 0 || j < i {
		t.Fatalf("name element not found in\n%s", doc)
	}
	text := doc[i+len(open) : j]
	if strings.ContainsAny(text, `<>"'`) {
		t.Fatalf("raw special characters inside element text: %q", text)
	}
	for k := 0; k < len(text); k++ {
		if text[k] == '&' && !strings.HasPrefix(text[k:], "&amp;") && !strings.HasPrefix(text[k:], "&apos;") &&
			!strings.HasPrefix(text[k:], "&quot;") && !strings.HasPrefix(text[k:], "&lt;") && !strings.HasPrefix(text[k:], "&gt;") {
			t.Fatalf("bare ampersand in %q", text)
		}
	}

	root := parseDoc(t, doc)
	got, ok := root.find(nsWS, "name")
	if !ok || got.Text != name {
		t.Fatalf("round-tripped name=%q want %q", got.Text, name)
	}
}

func TestBuild_DropsCharactersXMLCannotCarry(t *testing.T) {
	f := model.Factory{ID: 1, Name: "Bad\x01Name\x1bX", Status: "tab\tok\uFFFE", Location: geom.Point{X: 44.81, Y: 41.71}}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindFactories, Op: model.OpCreate, Feature: f})

	root := parseDoc(t, doc)
	name, ok := root.find(nsWS, "name")
	if !ok || name.Text != "BadNameX" {
		t.Fatalf("name=%q want %q", name.Text, "BadNameX")
	}
	status, _ := root.find(nsWS, "status")
	if status.Text != "tab\tok" {
		t.Fatalf("status=%q want tab kept and U+FFFE dropped", status.Text)
	}
}

func TestEscapeXML_InvalidUTF8BecomesReplacementChar(t *testing.T) {
	if got := EscapeXML("a\xffb&"); got != "a\uFFFDb&amp;" {
		t.Fatalf("EscapeXML=%q", got)
	}
}

func TestBuild_FactoryInsert(t *testing.T) {
	f := model.Factory{ID: 5, Name: "Test", IndustryType: "Food", Capacity: 100, EstablishedYear: 2020, Status: "Active",
		Location: geom.Point{X: 44.81, Y: 41.71}}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindFactories, Op: model.OpCreate, Feature: f})
	root := parseDoc(t, doc)

	feat, ok := root.find(nsWS, "factories")
	if !ok {
		t.Fatalf("no simple_map:factories element in\n%s", doc)
	}
	want := map[string]string{
		"id": "5", "name": "Test", "industry_type": "Food", "capacity": "100",
		"established_year": "2020", "status": "Active",
	}
	for k, v := range want {
		c, ok := feat.find(nsWS, k)
		if !ok || c.Text != v {
			t.Fatalf("%s=%q want %q", k, c.Text, v)
		}
	}
	pt, ok := feat.find(nsGML, "Point")
	if !ok || pt.attr("srsName") != "EPSG:4326" {
		t.Fatalf("missing gml:Point with srsName")
	}
	coords, _ := pt.find(nsGML, "coordinates")
	if strings.TrimSpace(coords.Text) != "44.81,41.71" {
		t.Fatalf("coordinates=%q", coords.Text)
	}
}

func TestBuild_RoadInsertLineString(t *testing.T) {
	line, err := geom.NewLineString([]geom.Point{{X: 44.805, Y: 41.72}, {X: 44.81, Y: 41.718}, {X: 44.815, Y: 41.716}})
	if err != nil {
		t.Fatalf("NewLineString: %v", err)
	}
	r := model.Road{ID: 2, Name: "Rustaveli", RoadType: "Main Street", LengthKm: 0.1, SurfaceType: "Asphalt", MaxSpeed: 50, Path: line}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindRoads, Op: model.OpUpdate, Feature: r})
	root := parseDoc(t, doc)

	length, _ := root.find(nsWS, "length_km")
	if length.Text != "0.1" {
		t.Fatalf("length_km=%q want 0.1", length.Text)
	}
	ls, ok := root.find(nsGML, "LineString")
	if !ok {
		t.Fatalf("no gml:LineString in\n%s", doc)
	}
	coords, _ := ls.find(nsGML, "coordinates")
	pts := parseTuples(t, coords.Text)
	if len(pts) != 3 || pts[2] != (geom.Point{X: 44.815, Y: 41.716}) {
		t.Fatalf("unexpected vertices %v", pts)
	}
}

func TestBuild_PolygonRingIsClosed(t *testing.T) {
	ring, err := geom.NewPolygon([]geom.Point{{X: 44.76, Y: 41.74}, {X: 44.77, Y: 41.74}, {X: 44.77, Y: 41.75}, {X: 44.76, Y: 41.75}})
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}
	f := model.Forest{ID: 3, Name: "Turtle Lake", AreaHectares: 120.8, Ring: &ring}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindForests, Op: model.OpCreate, Feature: f})
	root := parseDoc(t, doc)

	lr, ok := root.find(nsGML, "LinearRing")
	if !ok {
		t.Fatalf("no gml:LinearRing in\n%s", doc)
	}
	if _, ok := root.find(nsGML, "exterior"); !ok {
		t.Fatal("no gml:exterior")
	}
	coords, _ := lr.find(nsGML, "coordinates")
	pts := parseTuples(t, coords.Text)
	if len(pts) != 5 || pts[0] != pts[4] {
		t.Fatalf("ring not closed: %v", pts)
	}
	area, _ := root.find(nsWS, "area_hectares")
	if area.Text != "120.8" {
		t.Fatalf("area_hectares=%q", area.Text)
	}
}

func TestBuild_ForestWithoutRingFallsBackToSquare(t *testing.T) {
	center := geom.Point{X: 44.8, Y: 41.7}
	f := model.Forest{ID: 4, Name: "Vake", Center: &center}
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindForests, Op: model.OpCreate, Feature: f})
	root := parseDoc(t, doc)

	lr, ok := root.find(nsGML, "LinearRing")
	if !ok {
		t.Fatalf("no fallback polygon in\n%s", doc)
	}
	coords, _ := lr.find(nsGML, "coordinates")
	pts := parseTuples(t, coords.Text)
	if len(pts) != 5 || pts[0] != pts[4] {
		t.Fatalf("fallback ring not closed: %v", pts)
	}
	for _, p := range pts {
		if math.Abs(math.Abs(p.X-center.X)-geom.FallbackDelta) > 1e-9 || math.Abs(math.Abs(p.Y-center.Y)-geom.FallbackDelta) > 1e-9 {
			t.Fatalf("vertex %v is not offset by %v from center", p, geom.FallbackDelta)
		}
	}
}

func TestBuild_ForestWithoutAnyGeometryOmitsGeom(t *testing.T) {
	doc := mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindForests, Op: model.OpCreate, Feature: model.Forest{ID: 8, Name: "Nowhere"}})
	root := parseDoc(t, doc)
	if _, ok := root.find(nsWS, "geom"); ok {
		t.Fatalf("geom element should be absent:\n%s", doc)
	}
}

func TestBuild_UpdateInsertOnlyByDefault(t *testing.T) {
	f := sampleFeatures(t)[model.KindFactories]
	root := parseDoc(t, mustBuild(t, newBuilder(), model.SyncOperation{Kind: model.KindFactories, Op: model.OpUpdate, Feature: f}))
	ops := root.children(nsWFS)
	if len(ops) != 1 || ops[0].XMLName.Local != "Insert" {
		t.Fatalf("ops=%v want single Insert", ops)
	}
}

func TestBuild_UpdateReplaceOnUpdate(t *testing.T) {
	f := sampleFeatures(t)[model.KindFactories]
	root := parseDoc(t, mustBuild(t, newBuilder(WithReplaceOnUpdate(true)), model.SyncOperation{Kind: model.KindFactories, Op: model.OpUpdate, Feature: f}))
	ops := root.children(nsWFS)
	if len(ops) != 2 || ops[0].XMLName.Local != "Delete" || ops[1].XMLName.Local != "Insert" {
		t.Fatalf("ops=%v want Delete then Insert", ops)
	}
}

func TestBuild_Errors(t *testing.T) {
	b := newBuilder()
	f := sampleFeatures(t)[model.KindFactories]

	if _, err := b.Build(model.SyncOperation{Kind: model.KindFactories, Op: "upsert", Feature: f}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("err=%v want ErrUnknownOp", err)
	}
	if _, err := b.Build(model.SyncOperation{Kind: model.KindFactories, Op: model.OpCreate}); err == nil {
		t.Fatal("expected error for nil feature")
	}
	if _, err := b.Build(model.SyncOperation{Kind: model.KindRoads, Op: model.OpCreate, Feature: f}); err == nil {
		t.Fatal("expected error for mismatched kind")
	}
	empty := NewTemplateBuilder(Namespace{})
	if _, err := empty.Build(model.SyncOperation{Kind: model.KindFactories, Op: model.OpDelete, Feature: f}); err == nil {
		t.Fatal("expected error for empty namespace prefix")
	}
}

func TestEndpoints(t *testing.T) {
	base := "http://localhost:8080/geoserver/"
	if got := WFSEndpoint(base); got != "http://localhost:8080/geoserver/wfs" {
		t.Fatalf("WFSEndpoint=%q", got)
	}
	if got := WorkspaceWMS(base, "simple_map"); got != "http://localhost:8080/geoserver/simple_map/wms" {
		t.Fatalf("WorkspaceWMS=%q", got)
	}
	if got := RESTEndpoint(base, "workspaces.json"); got != "http://localhost:8080/geoserver/rest/workspaces.json" {
		t.Fatalf("RESTEndpoint=%q", got)
	}
	if got := CapabilitiesURL("http://x/ws/wms"); got != "http://x/ws/wms?SERVICE=WMS&VERSION=1.3.0&REQUEST=GetCapabilities" {
		t.Fatalf("CapabilitiesURL=%q", got)
	}
}
