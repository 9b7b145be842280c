// Package api serves the /api/geo HTTP surface the map client talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geosync/internal/cache"
	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/model"
	"github.com/mohammed-shakir/geosync/internal/features"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
	"github.com/mohammed-shakir/geosync/internal/layers"
	"github.com/mohammed-shakir/geosync/internal/store"
	"github.com/mohammed-shakir/geosync/internal/syncer"
)

const maxBody = 1 << 20

// Prober reports GeoServer connectivity.
type Prober interface {
	Probe(ctx context.Context) geoserver.ProbeResult
}

// Outcomes exposes the last recorded sync per feature.
type Outcomes interface {
	Outcome(kind model.Kind, id int64) (syncer.Outcome, bool)
}

type Handler struct {
	logger   *slog.Logger
	svc      *features.Service
	layers   *layers.Registry
	probe    Prober
	outcomes Outcomes
	gs       config.GeoServer
}

func New(logger *slog.Logger, svc *features.Service, reg *layers.Registry, probe Prober, outcomes Outcomes, gs config.GeoServer) *Handler {
	return &Handler{logger: logger, svc: svc, layers: reg, probe: probe, outcomes: outcomes, gs: gs}
}

// Routes returns the router to mount under /api/geo.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	mountLayer(r, h, h.svc.Factories, "industry", "Factory",
		func(b []byte) (model.Factory, error) {
			var body factoryBody
			if err := decode(b, &body); err != nil {
				return model.Factory{}, err
			}
			return body.toModel()
		},
		func(f model.Factory) any { return factoryOut(f) })

	mountLayer(r, h, h.svc.Roads, "type", "Road",
		func(b []byte) (model.Road, error) {
			var body roadBody
			if err := decode(b, &body); err != nil {
				return model.Road{}, err
			}
			return body.toModel()
		},
		func(x model.Road) any { return roadOut(x) })

	mountLayer(r, h, h.svc.Forests, "type", "Forest",
		func(b []byte) (model.Forest, error) {
			var body forestBody
			if err := decode(b, &body); err != nil {
				return model.Forest{}, err
			}
			return body.toModel(h.logger)
		},
		func(f model.Forest) any { return forestOut(f) })

	r.Get("/config", h.config)
	r.Get("/layers", h.layerNames)
	r.Get("/layers/available", h.layersAvailable)
	r.Get("/layers/{name}/style", h.layerStyle)
	r.Get("/layers/{name}/capabilities", h.layerCapabilities)
	r.Get("/geoserver/status", h.geoserverStatus)
	r.Get("/geoserver/test-detailed", h.geoserverDetailed)
	r.Get("/geoserver/sync/{layer}/{id}", h.syncOutcome)
	return r
}

func mountLayer[T model.Feature](
	r chi.Router,
	h *Handler,
	l *features.Layer[T],
	filterSeg, noun string,
	parse func([]byte) (T, error),
	out func(T) any,
) {
	base := "/" + string(l.Kind())

	collection := func(w http.ResponseWriter, r *http.Request) {
		h.serveCollection(w, r, l.Collection, chi.URLParam(r, "value"))
	}
	r.Get(base, collection)
	r.Get(base+"/geojson", collection)
	r.Get(base+"/"+filterSeg+"/{value}", collection)

	r.Get(base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		v, err := l.Get(r.Context(), id)
		if err != nil {
			h.storeError(w, r, err, noun, id)
			return
		}
		writeJSON(w, http.StatusOK, out(v))
	})

	r.Post(base, func(w http.ResponseWriter, r *http.Request) {
		v, ok := readBody(w, r, parse)
		if !ok {
			return
		}
		saved, err := l.Create(r.Context(), v)
		if err != nil {
			h.storeError(w, r, err, noun, 0)
			return
		}
		writeJSON(w, http.StatusCreated, out(saved))
	})

	r.Put(base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		v, ok := readBody(w, r, parse)
		if !ok {
			return
		}
		saved, err := l.Update(r.Context(), id, v)
		if err != nil {
			h.storeError(w, r, err, noun, id)
			return
		}
		writeJSON(w, http.StatusOK, out(saved))
	})

	r.Delete(base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := l.Delete(r.Context(), id); err != nil {
			h.storeError(w, r, err, noun, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": noun + " deleted successfully",
			"id":      id,
		})
	})
}

func (h *Handler) serveCollection(
	w http.ResponseWriter,
	r *http.Request,
	load func(context.Context, string) (cache.Entry, error),
	typeValue string,
) {
	e, err := load(r.Context(), typeValue)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load collection failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load features")
		return
	}
	w.Header().Set("ETag", e.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), e.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Body)
}

func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, part := range strings.Split(header, ",") {
		p := strings.TrimSpace(part)
		p = strings.TrimPrefix(p, "W/")
		if p == "*" || p == etag {
			return true
		}
	}
	return false
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, noun string, id int64) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.ToLower(noun), id))
		return
	}
	h.logger.ErrorContext(r.Context(), "store operation failed",
		"method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

func readBody[T any](w http.ResponseWriter, r *http.Request, parse func([]byte) (T, error)) (T, bool) {
	var zero T
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return zero, false
	}
	v, err := parse(b)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return zero, false
	}
	return v, true
}

func decode(b []byte, dst any) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
