// Package layers describes the published map layers and how the front end
// should style them.
package layers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/model"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
)

type Descriptor struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	GeometryKind string `json:"geometryKind"`
	Color        string `json:"color"`
	TypeName     string `json:"typeName"`
	WMSURL       string `json:"wmsUrl"`
	WFSURL       string `json:"wfsUrl"`
}

type Style struct {
	FillColor   string  `json:"fillColor" yaml:"fillColor"`
	StrokeColor string  `json:"strokeColor" yaml:"strokeColor"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Opacity     float64 `json:"opacity" yaml:"opacity"`
	FillOpacity float64 `json:"fillOpacity" yaml:"fillOpacity"`
	Radius      float64 `json:"radius,omitempty" yaml:"radius"`
}

// DefaultStyle is returned for names the registry does not know.
var DefaultStyle = Style{
	FillColor:   "#3388ff",
	StrokeColor: "#3388ff",
	Weight:      2,
	Opacity:     0.8,
	FillOpacity: 0.2,
}

type entry struct {
	displayName string
	color       string
	style       Style
}

var builtin = map[model.Kind]entry{
	model.KindForests: {
		displayName: "Forests",
		color:       "#228b22",
		style:       Style{FillColor: "#228b22", StrokeColor: "#1a6b1a", Weight: 2, Opacity: 0.8, FillOpacity: 0.4},
	},
	model.KindRoads: {
		displayName: "Roads",
		color:       "#555555",
		style:       Style{FillColor: "#555555", StrokeColor: "#555555", Weight: 4, Opacity: 0.9},
	},
	model.KindFactories: {
		displayName: "Factories",
		color:       "#ff6b35",
		style:       Style{FillColor: "#ff6b35", StrokeColor: "#c2410c", Weight: 1, Opacity: 1, FillOpacity: 0.9, Radius: 8},
	},
}

// Registry is built once at startup and read-only afterwards.
type Registry struct {
	baseURL   string
	workspace string
	entries   map[model.Kind]entry
}

// Override is one layer's section of the optional layers file. Zero fields
// keep the built-in value.
type Override struct {
	DisplayName string `yaml:"displayName"`
	Color       string `yaml:"color"`
	Style       Style  `yaml:"style"`
}

type File struct {
	Layers map[string]Override `yaml:"layers"`
}

func New(gs config.GeoServer) *Registry {
	r := &Registry{baseURL: gs.URL, workspace: gs.Workspace, entries: map[model.Kind]entry{}}
	for k, e := range builtin {
		r.entries[k] = e
	}
	return r
}

// Load builds the registry and applies overrides from path when it is set.
func Load(gs config.GeoServer, path string) (*Registry, error) {
	r := New(gs)
	if path == "" {
		return r, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layers file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse layers file %s: %w", path, err)
	}
	if err := r.apply(f); err != nil {
		return nil, fmt.Errorf("layers file %s: %w", path, err)
	}
	return r, nil
}

func (r *Registry) apply(f File) error {
	for name, o := range f.Layers {
		kind, err := model.ParseKind(name)
		if err != nil {
			return err
		}
		e := r.entries[kind]
		if o.DisplayName != "" {
			e.displayName = o.DisplayName
		}
		if o.Color != "" {
			e.color = o.Color
		}
		e.style = mergeStyle(e.style, o.Style)
		r.entries[kind] = e
	}
	return nil
}

func mergeStyle(base, o Style) Style {
	if o.FillColor != "" {
		base.FillColor = o.FillColor
	}
	if o.StrokeColor != "" {
		base.StrokeColor = o.StrokeColor
	}
	if o.Weight != 0 {
		base.Weight = o.Weight
	}
	if o.Opacity != 0 {
		base.Opacity = o.Opacity
	}
	if o.FillOpacity != 0 {
		base.FillOpacity = o.FillOpacity
	}
	if o.Radius != 0 {
		base.Radius = o.Radius
	}
	return base
}

func (r *Registry) Describe(name string) (Descriptor, bool) {
	kind, err := model.ParseKind(name)
	if err != nil {
		return Descriptor{}, false
	}
	e := r.entries[kind]
	return Descriptor{
		Name:         string(kind),
		DisplayName:  e.displayName,
		GeometryKind: string(kind.GeometryType()),
		Color:        e.color,
		TypeName:     ogc.TypeName(r.workspace, string(kind)),
		WMSURL:       ogc.WorkspaceWMS(r.baseURL, r.workspace),
		WFSURL:       ogc.WorkspaceWFS(r.baseURL, r.workspace),
	}, true
}

// All lists layers bottom to top in drawing order: forests, roads, factories.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		d, _ := r.Describe(string(k))
		out = append(out, d)
	}
	return out
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		out = append(out, string(k))
	}
	return out
}

func (r *Registry) Style(name string) Style {
	kind, err := model.ParseKind(name)
	if err != nil {
		return DefaultStyle
	}
	return r.entries[kind].style
}

// CapabilitiesURL is the WMS GetCapabilities URL for the layer's workspace.
func (r *Registry) CapabilitiesURL(name string) (string, bool) {
	d, ok := r.Describe(name)
	if !ok {
		return "", false
	}
	return ogc.CapabilitiesURL(d.WMSURL), true
}
