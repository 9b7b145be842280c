package ogc

import (
	"net/url"
	"strings"
)

func trimBase(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/")
}

// WFSEndpoint is the global WFS endpoint transactions are posted to.
func WFSEndpoint(geoServerBase string) string {
	return trimBase(geoServerBase) + "/wfs"
}

// WorkspaceWMS is the virtual WMS endpoint scoped to one workspace.
func WorkspaceWMS(geoServerBase, workspace string) string {
	return trimBase(geoServerBase) + "/" + url.PathEscape(workspace) + "/wms"
}

func WorkspaceWFS(geoServerBase, workspace string) string {
	return trimBase(geoServerBase) + "/" + url.PathEscape(workspace) + "/wfs"
}

// CapabilitiesURL keeps the conventional SERVICE, VERSION, REQUEST order
// rather than the sorted order url.Values would produce.
func CapabilitiesURL(wmsURL string) string {
	return wmsURL + "?SERVICE=WMS&VERSION=1.3.0&REQUEST=GetCapabilities"
}

// RESTEndpoint joins path segments onto the GeoServer REST root.
func RESTEndpoint(geoServerBase string, segments ...string) string {
	var b strings.Builder
	b.WriteString(trimBase(geoServerBase))
	b.WriteString("/rest")
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// NamespaceURI is the feature type namespace GeoServer assigns to a workspace
// created through the REST API with default settings.
func NamespaceURI(geoServerBase, workspace string) string {
	return trimBase(geoServerBase) + "/" + workspace
}

func TypeName(workspace, layer string) string {
	return workspace + ":" + layer
}
