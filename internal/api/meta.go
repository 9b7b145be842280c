package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geosync/internal/core/model"
)

func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"geoserverUrl": h.gs.URL,
		"workspace":    h.gs.Workspace,
	})
}

func (h *Handler) layerNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"layers": h.layers.Names()})
}

func (h *Handler) layersAvailable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.layers.All())
}

// layerStyle answers unknown names with the default style.
func (h *Handler) layerStyle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.layers.Style(chi.URLParam(r, "name")))
}

func (h *Handler) layerCapabilities(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	u, ok := h.layers.CapabilitiesURL(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown layer "+name)
		return
	}
	d, _ := h.layers.Describe(name)
	writeJSON(w, http.StatusOK, map[string]string{
		"capabilitiesUrl": u,
		"layerName":       d.TypeName,
	})
}

func (h *Handler) geoserverStatus(w http.ResponseWriter, r *http.Request) {
	res := h.probe.Probe(r.Context())
	msg := "Connected to GeoServer"
	if !res.Connected {
		msg = "Could not connect to GeoServer"
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": res.Connected, "message": msg})
}

func (h *Handler) geoserverDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probe.Probe(r.Context()))
}

func (h *Handler) syncOutcome(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(chi.URLParam(r, "layer"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, ok := h.outcomes.Outcome(kind, id)
	if !ok {
		writeError(w, http.StatusNotFound, "no sync recorded for "+string(kind)+"/"+chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, o)
}
