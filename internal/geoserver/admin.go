package geoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
)

// FeatureType names one table to publish as a layer.
type FeatureType struct {
	Name  string
	Title string
}

// StepResult is the outcome of one REST call made by Publish.
type StepResult struct {
	Step       string `json:"step"`
	Target     string `json:"target"`
	OK         bool   `json:"ok"`
	Existed    bool   `json:"existed,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

type PublishReport struct {
	Steps []StepResult `json:"steps"`
}

func (r PublishReport) OK() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// alreadyExists covers the 409 newer GeoServers send and the 401/500 with an
// "already exists" message older ones send.
func alreadyExists(resp response) bool {
	if resp.StatusCode == http.StatusConflict {
		return true
	}
	return resp.StatusCode >= 400 && bytes.Contains(bytes.ToLower(resp.Body), []byte("already exists"))
}

func (c *Client) postJSON(ctx context.Context, step, target, url string, payload any) StepResult {
	res := StepResult{Step: step, Target: target}
	body, err := json.Marshal(payload)
	if err != nil {
		res.Error = fmt.Sprintf("encode %s: %v", step, err)
		return res
	}
	resp, err := c.do(ctx, step, http.MethodPost, url, "application/json", body)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.StatusCode = resp.StatusCode
	switch {
	case resp.ok():
		res.OK = true
	case alreadyExists(resp):
		res.OK, res.Existed = true, true
	default:
		res.Error = (&StatusError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)}).Error()
	}
	return res
}

func (c *Client) CreateWorkspace(ctx context.Context) StepResult {
	payload := map[string]any{"workspace": map[string]string{"name": c.workspace}}
	return c.postJSON(ctx, "workspace", c.workspace, ogc.RESTEndpoint(c.base, "workspaces"), payload)
}

type entry struct {
	Key   string `json:"@key"`
	Value string `json:"$"`
}

// CreateDatastore registers the PostGIS store the feature tables live in.
func (c *Client) CreateDatastore(ctx context.Context, ds config.Datastore) StepResult {
	params := []entry{
		{"dbtype", "postgis"},
		{"host", ds.Host},
		{"port", strconv.Itoa(ds.Port)},
		{"database", ds.Database},
		{"schema", ds.Schema},
		{"user", ds.User},
		{"passwd", ds.Password},
		{"Expose primary keys", "true"},
	}
	payload := map[string]any{
		"dataStore": map[string]any{
			"name":                 ds.Name,
			"enabled":              true,
			"connectionParameters": map[string]any{"entry": params},
		},
	}
	return c.postJSON(ctx, "datastore", ds.Name, ogc.RESTEndpoint(c.base, "workspaces", c.workspace, "datastores"), payload)
}

func (c *Client) PublishFeatureType(ctx context.Context, datastore string, ft FeatureType) StepResult {
	title := ft.Title
	if title == "" {
		title = ft.Name
	}
	payload := map[string]any{
		"featureType": map[string]any{
			"name":       ft.Name,
			"nativeName": ft.Name,
			"title":      title,
			"srs":        "EPSG:4326",
			"enabled":    true,
		},
	}
	url := ogc.RESTEndpoint(c.base, "workspaces", c.workspace, "datastores", datastore, "featuretypes")
	return c.postJSON(ctx, "featuretype", ft.Name, url, payload)
}

// Publish creates the workspace, the datastore and every feature type. A
// failed step is reported and the remaining steps still run.
func (c *Client) Publish(ctx context.Context, ds config.Datastore, fts []FeatureType) PublishReport {
	var rep PublishReport
	record := func(s StepResult) {
		rep.Steps = append(rep.Steps, s)
		if s.OK {
			c.logger.Info("geoserver publish step", "step", s.Step, "target", s.Target, "existed", s.Existed)
			return
		}
		c.logger.Error("geoserver publish step failed", "step", s.Step, "target", s.Target, "err", s.Error)
	}

	record(c.CreateWorkspace(ctx))
	record(c.CreateDatastore(ctx, ds))
	for _, ft := range fts {
		record(c.PublishFeatureType(ctx, ds.Name, ft))
	}
	return rep
}
