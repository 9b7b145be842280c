package ogc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geosync/internal/core/model"
)

// TransactionBuilder turns one sync operation into a WFS 1.1.0 Transaction
// document.
type TransactionBuilder interface {
	Build(op model.SyncOperation) (string, error)
}

// Namespace is the workspace prefix and URI feature type elements are
// qualified with.
type Namespace struct {
	Prefix string
	URI    string
}

type BuilderOption func(*TemplateBuilder)

// WithReplaceOnUpdate makes updates delete the remote feature by id before
// inserting the new version, inside the same transaction.
func WithReplaceOnUpdate(on bool) BuilderOption {
	return func(b *TemplateBuilder) { b.replaceOnUpdate = on }
}

// TemplateBuilder renders transactions by string templating. Well-formedness
// is checked by parsing the output in tests, not guaranteed by construction.
type TemplateBuilder struct {
	ns              Namespace
	replaceOnUpdate bool
}

var _ TransactionBuilder = (*TemplateBuilder)(nil)

func NewTemplateBuilder(ns Namespace, opts ...BuilderOption) *TemplateBuilder {
	b := &TemplateBuilder{ns: ns}
	for _, o := range opts {
		o(b)
	}
	return b
}

var (
	ErrUnknownOp   = errors.New("unknown sync op")
	ErrUnknownKind = errors.New("unknown feature kind")
)

func (b *TemplateBuilder) Build(op model.SyncOperation) (string, error) {
	if strings.TrimSpace(b.ns.Prefix) == "" {
		return "", errors.New("namespace prefix is required")
	}
	if op.Feature == nil {
		return "", fmt.Errorf("%s %s: feature is nil", op.Op, op.Kind)
	}
	if op.Kind != op.Feature.Kind() {
		return "", fmt.Errorf("op kind %q does not match feature kind %q", op.Kind, op.Feature.Kind())
	}
	if op.Kind.GeometryType() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}

	var body strings.Builder
	switch op.Op {
	case model.OpCreate:
		if err := b.writeInsert(&body, op.Feature); err != nil {
			return "", err
		}
	case model.OpUpdate:
		if b.replaceOnUpdate {
			b.writeDelete(&body, op.Kind, op.Feature.FeatureID())
		}
		if err := b.writeInsert(&body, op.Feature); err != nil {
			return "", err
		}
	case model.OpDelete:
		b.writeDelete(&body, op.Kind, op.Feature.FeatureID())
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<wfs:Transaction version="1.1.0" service="WFS"
    xmlns:wfs="http://www.opengis.net/wfs"
    xmlns:gml="http://www.opengis.net/gml"
    xmlns:ogc="http://www.opengis.net/ogc"
    xmlns:%s="%s">
%s</wfs:Transaction>
`, b.ns.Prefix, EscapeXML(b.ns.URI), body.String()), nil
}

func (b *TemplateBuilder) writeInsert(w *strings.Builder, f model.Feature) error {
	cols, err := columns(f)
	if err != nil {
		return err
	}
	p := b.ns.Prefix
	kind := string(f.Kind())

	fmt.Fprintf(w, "  <wfs:Insert>\n    <%s:%s>\n", p, kind)
	for _, c := range cols {
		fmt.Fprintf(w, "      <%s:%s>%s</%s:%s>\n", p, c.name, c.value, p, c.name)
	}
	if g := f.Geometry(); g != nil {
		gml, err := GML(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "      <%s:geom>\n        %s\n      </%s:geom>\n", p, gml, p)
	}
	fmt.Fprintf(w, "    </%s:%s>\n  </wfs:Insert>\n", p, kind)
	return nil
}

func (b *TemplateBuilder) writeDelete(w *strings.Builder, kind model.Kind, id int64) {
	fmt.Fprintf(w, `  <wfs:Delete typeName="%s">
    <ogc:Filter>
      <ogc:PropertyIsEqualTo>
        <ogc:PropertyName>id</ogc:PropertyName>
        <ogc:Literal>%s</ogc:Literal>
      </ogc:PropertyIsEqualTo>
    </ogc:Filter>
  </wfs:Delete>
`, EscapeXML(TypeName(b.ns.Prefix, string(kind))), strconv.FormatInt(id, 10))
}

type column struct {
	name  string
	value string
}

// columns lists attribute elements in the order of the published table.
// Values are already escaped or formatted.
func columns(f model.Feature) ([]column, error) {
	switch v := f.(type) {
	case model.Factory:
		return []column{
			{"id", formatInt(v.ID)},
			{"name", EscapeXML(v.Name)},
			{"industry_type", EscapeXML(v.IndustryType)},
			{"capacity", formatInt(int64(v.Capacity))},
			{"established_year", formatInt(int64(v.EstablishedYear))},
			{"status", EscapeXML(v.Status)},
		}, nil
	case model.Road:
		return []column{
			{"id", formatInt(v.ID)},
			{"name", EscapeXML(v.Name)},
			{"road_type", EscapeXML(v.RoadType)},
			{"length_km", formatFloat(v.LengthKm)},
			{"surface_type", EscapeXML(v.SurfaceType)},
			{"max_speed", formatInt(int64(v.MaxSpeed))},
		}, nil
	case model.Forest:
		return []column{
			{"id", formatInt(v.ID)},
			{"name", EscapeXML(v.Name)},
			{"forest_type", EscapeXML(v.ForestType)},
			{"area_hectares", formatFloat(v.AreaHectares)},
			{"density", EscapeXML(v.Density)},
			{"protection_status", EscapeXML(v.ProtectionStatus)},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, f)
	}
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }

// formatFloat is locale independent and uses the shortest exact decimal form.
func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
