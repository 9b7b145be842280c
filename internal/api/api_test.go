package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/httpclient"
	"github.com/mohammed-shakir/geosync/internal/core/model"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
	"github.com/mohammed-shakir/geosync/internal/features"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
	"github.com/mohammed-shakir/geosync/internal/layers"
	"github.com/mohammed-shakir/geosync/internal/store"
	"github.com/mohammed-shakir/geosync/internal/syncer"
)

type env struct {
	srv  *httptest.Server
	disp *syncer.Dispatcher
}

// newEnv wires the real stack against a fake GeoServer answering every
// request with gsStatus.
func newEnv(t *testing.T, gsStatus int) env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(gsStatus)
		if strings.HasSuffix(r.URL.Path, "/workspaces.json") {
			_, _ = io.WriteString(w, `{"workspaces":{"workspace":[{"name":"simple_map"}]}}`)
			return
		}
		_, _ = io.WriteString(w, "internal failure")
	}))
	t.Cleanup(gsSrv.Close)

	gsCfg := config.GeoServer{URL: gsSrv.URL, Workspace: "simple_map", Username: "admin", Password: "geoserver"}
	gs := geoserver.New(logger, httpclient.NewOutbound(2*time.Second), gsCfg)

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disp := syncer.New(logger, ogc.NewTemplateBuilder(gs.Namespace()), gs,
		config.SyncCfg{Enabled: true, Workers: 1, Queue: 16, Timeout: time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = disp.Close(ctx)
	})

	svc := features.New(features.Deps{Logger: logger, Store: st, Sync: disp})
	h := New(logger, svc, layers.New(gsCfg), gs, disp, gsCfg)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return env{srv: srv, disp: disp}
}

func do(t *testing.T, method, url, body string, hdr ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestFactory_CreateThenGet(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	resp, b := do(t, http.MethodPost, e.srv.URL+"/factories",
		`{"name":"Rustavi Steel","type":"Metallurgy","capacity":500,"establishedYear":1950,"status":"active","longitude":44.99,"latitude":41.54}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status=%d body=%s", resp.StatusCode, b)
	}
	var created factoryJSON
	if err := json.Unmarshal(b, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || created.IndustryType != "Metallurgy" {
		t.Fatalf("created=%+v", created)
	}

	resp, b = do(t, http.MethodGet, e.srv.URL+"/factories/"+itoa(created.ID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status=%d", resp.StatusCode)
	}
	var got factoryJSON
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != created {
		t.Fatalf("GET=%+v want %+v", got, created)
	}
	if got.Longitude != 44.99 || got.Latitude != 41.54 || got.Capacity != 500 {
		t.Fatalf("attributes lost: %+v", got)
	}
}

func TestForests_EmptyGeoJSON(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	resp, b := do(t, http.MethodGet, e.srv.URL+"/forests/geojson", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if string(b) != `{"type":"FeatureCollection","features":[]}` {
		t.Fatalf("body=%s", b)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	resp, _ = do(t, http.MethodGet, e.srv.URL+"/forests/geojson", "", "If-None-Match", etag)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional GET status=%d want 304", resp.StatusCode)
	}
}

func TestRoad_DeleteSucceedsWhenGeoServerFails(t *testing.T) {
	e := newEnv(t, http.StatusInternalServerError)
	resp, b := do(t, http.MethodPost, e.srv.URL+"/roads",
		`{"name":"R1","type":"highway","material":"asphalt","length":12.5,"startLat":41.7,"startLng":44.7,"endLat":41.8,"endLng":44.8}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status=%d body=%s", resp.StatusCode, b)
	}
	var road roadJSON
	_ = json.Unmarshal(b, &road)
	id := itoa(road.ID)

	resp, b = do(t, http.MethodDelete, e.srv.URL+"/roads/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status=%d body=%s", resp.StatusCode, b)
	}
	var msg map[string]any
	_ = json.Unmarshal(b, &msg)
	if msg["message"] != "Road deleted successfully" || msg["id"] != float64(road.ID) {
		t.Fatalf("delete body=%s", b)
	}

	if resp, _ := do(t, http.MethodGet, e.srv.URL+"/roads/"+id, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status=%d want 404", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o, ok := e.disp.Outcome(model.KindRoads, road.ID); ok && o.Op == model.OpDelete && o.Status == syncer.StatusRejected {
			resp, b := do(t, http.MethodGet, e.srv.URL+"/geoserver/sync/roads/"+id, "")
			if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"status":"rejected"`) {
				t.Fatalf("sync outcome status=%d body=%s", resp.StatusCode, b)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	o, _ := e.disp.Outcome(model.KindRoads, road.ID)
	t.Fatalf("delete sync never recorded as rejected: %+v", o)
}

func TestForest_MalformedCoordinatesFallBackToSquare(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	resp, b := do(t, http.MethodPost, e.srv.URL+"/forests",
		`{"name":"Borjomi","forestType":"Mixed","centerLat":41.8,"centerLng":43.4,"coordinates":"[[43.4,41.8],[oops"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status=%d body=%s", resp.StatusCode, b)
	}
	var f forestJSON
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Coordinates == nil || !strings.HasPrefix(*f.Coordinates, "[[43.39") {
		t.Fatalf("expected fallback square ring, got %v", f.Coordinates)
	}
	if f.Type != "Mixed" {
		t.Fatalf("type=%q", f.Type)
	}
}

func TestBadRequests(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	cases := []struct{ method, path, body string }{
		{http.MethodPost, "/factories", `{"name":"x","longitude":"east","latitude":1}`},
		{http.MethodPost, "/factories", `{"latitude":1,"longitude":2}`},
		{http.MethodPost, "/factories", `{not json`},
		{http.MethodPost, "/roads", `{"name":"r","coordinates":[[1,2]]}`},
		{http.MethodPost, "/forests", `{"name":"f"}`},
		{http.MethodGet, "/roads/abc", ``},
	}
	for _, c := range cases {
		resp, b := do(t, c.method, e.srv.URL+c.path, c.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s %s %s: status=%d want 400", c.method, c.path, c.body, resp.StatusCode)
		}
		var body map[string]string
		if err := json.Unmarshal(b, &body); err != nil || body["error"] == "" {
			t.Fatalf("%s %s: error body=%s", c.method, c.path, b)
		}
	}
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	if resp, _ := do(t, http.MethodPut, e.srv.URL+"/factories/77", `{"name":"x","longitude":1,"latitude":2}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("PUT missing status=%d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodDelete, e.srv.URL+"/forests/77", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("DELETE missing status=%d", resp.StatusCode)
	}
}

func TestRoad_UpdateWithAliases(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	_, b := do(t, http.MethodPost, e.srv.URL+"/roads", `{"name":"R","coordinates":[[44.7,41.7],[44.75,41.72],[44.8,41.8]]}`)
	var r roadJSON
	_ = json.Unmarshal(b, &r)
	resp, b := do(t, http.MethodPut, e.srv.URL+"/roads/"+itoa(r.ID),
		`{"name":"R2","roadType":"local","surfaceType":"gravel","lengthKm":3,"coordinates":[[44.7,41.7],[44.8,41.8]]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status=%d body=%s", resp.StatusCode, b)
	}
	var up roadJSON
	_ = json.Unmarshal(b, &up)
	if up.Name != "R2" || up.Type != "local" || up.Material != "gravel" || up.Length != 3 || len(up.Coordinates) != 2 {
		t.Fatalf("updated=%+v", up)
	}

	resp, b = do(t, http.MethodGet, e.srv.URL+"/roads/type/local", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"name":"R2"`) {
		t.Fatalf("filtered status=%d body=%s", resp.StatusCode, b)
	}
}

func TestMetaEndpoints(t *testing.T) {
	e := newEnv(t, http.StatusOK)

	_, b := do(t, http.MethodGet, e.srv.URL+"/layers", "")
	if string(b) != `{"layers":["forests","roads","factories"]}`+"\n" {
		t.Fatalf("layers=%s", b)
	}

	_, b = do(t, http.MethodGet, e.srv.URL+"/layers/unknown/style", "")
	if !strings.Contains(string(b), `"fillColor":"#3388ff"`) {
		t.Fatalf("default style=%s", b)
	}

	resp, b := do(t, http.MethodGet, e.srv.URL+"/layers/roads/capabilities", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"layerName":"simple_map:roads"`) ||
		!strings.Contains(string(b), `SERVICE=WMS&VERSION=1.3.0&REQUEST=GetCapabilities`) {
		t.Fatalf("capabilities status=%d body=%s", resp.StatusCode, b)
	}
	if resp, _ := do(t, http.MethodGet, e.srv.URL+"/layers/rivers/capabilities", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown capabilities status=%d", resp.StatusCode)
	}

	_, b = do(t, http.MethodGet, e.srv.URL+"/geoserver/status", "")
	if !strings.Contains(string(b), `"connected":true`) {
		t.Fatalf("status=%s", b)
	}

	_, b = do(t, http.MethodGet, e.srv.URL+"/config", "")
	if !strings.Contains(string(b), `"workspace":"simple_map"`) {
		t.Fatalf("config=%s", b)
	}

	if resp, _ := do(t, http.MethodGet, e.srv.URL+"/geoserver/sync/factories/1", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("sync outcome for unknown feature status=%d", resp.StatusCode)
	}
}

func TestGeoServerDown(t *testing.T) {
	e := newEnv(t, http.StatusUnauthorized)
	_, b := do(t, http.MethodGet, e.srv.URL+"/geoserver/test-detailed", "")
	var pr geoserver.ProbeResult
	if err := json.Unmarshal(b, &pr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pr.Connected || pr.StatusCode != http.StatusUnauthorized || pr.Username != "admin" {
		t.Fatalf("probe=%+v", pr)
	}
}

func TestEtagMatches(t *testing.T) {
	if !etagMatches(`"a", "b"`, `"b"`) || !etagMatches(`W/"b"`, `"b"`) || !etagMatches("*", `"x"`) {
		t.Fatal("expected match")
	}
	if etagMatches("", `"b"`) || etagMatches(`"a"`, `"b"`) {
		t.Fatal("unexpected match")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
