package ogc

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
)

const srsName = "EPSG:4326"

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters with their named
// entities. Runes outside the XML 1.0 Char production are dropped.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(strings.Map(xmlChar, s))
}

func xmlChar(r rune) rune {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return r
	case r >= 0x20 && r <= 0xD7FF,
		r >= 0xE000 && r <= 0xFFFD,
		r >= 0x10000 && r <= 0x10FFFF:
		return r
	default:
		return -1
	}
}

// GML renders g as a GML 3.1 geometry element using gml:coordinates with
// "," between x and y and a space between tuples.
func GML(g geom.Geometry) (string, error) {
	switch v := g.(type) {
	case geom.Point:
		return fmt.Sprintf(`<gml:Point srsName="%s">%s</gml:Point>`, srsName, coordinates([]geom.Point{v})), nil
	case geom.LineString:
		return fmt.Sprintf(`<gml:LineString srsName="%s">%s</gml:LineString>`, srsName, coordinates(v.Points())), nil
	case geom.Polygon:
		return fmt.Sprintf(`<gml:Polygon srsName="%s"><gml:exterior><gml:LinearRing>%s</gml:LinearRing></gml:exterior></gml:Polygon>`,
			srsName, coordinates(v.Ring())), nil
	default:
		return "", fmt.Errorf("%w: geometry %T", ErrUnknownKind, g)
	}
}

func coordinates(pts []geom.Point) string {
	tuples := make([]string, len(pts))
	for i, p := range pts {
		tuples[i] = formatFloat(p.X) + "," + formatFloat(p.Y)
	}
	return `<gml:coordinates decimal="." cs="," ts=" ">` + strings.Join(tuples, " ") + `</gml:coordinates>`
}
