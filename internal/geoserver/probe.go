package geoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammed-shakir/geosync/internal/core/ogc"
)

// ProbeResult is the detailed connectivity report. Fields that do not apply
// to the outcome are left empty.
type ProbeResult struct {
	Connected    bool            `json:"connected"`
	GeoServerURL string          `json:"geoserverUrl"`
	Username     string          `json:"username"`
	Workspace    string          `json:"workspace"`
	Timestamp    time.Time       `json:"timestamp"`
	StatusCode   int             `json:"statusCode,omitempty"`
	StatusText   string          `json:"statusText,omitempty"`
	ResponseBody string          `json:"responseBody,omitempty"`
	Workspaces   json.RawMessage `json:"workspaces,omitempty"`
	ParseError   string          `json:"parseError,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorType    string          `json:"errorType,omitempty"`
}

// Probe lists the workspaces through the REST API. Only a 2xx reply counts
// as connected; the password is never included in the result.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	out := ProbeResult{
		GeoServerURL: c.base,
		Username:     c.username,
		Workspace:    c.workspace,
		Timestamp:    c.now().UTC(),
	}

	resp, err := c.do(ctx, "probe", http.MethodGet, ogc.RESTEndpoint(c.base, "workspaces.json"), "", nil)
	if err != nil {
		out.Error = err.Error()
		out.ErrorType = errorType(err)
		c.logger.Warn("geoserver probe failed", "url", c.base, "err", err)
		return out
	}

	out.StatusCode = resp.StatusCode
	out.StatusText = resp.Status
	out.ResponseBody = string(resp.Body)
	if !resp.ok() {
		out.Error = (&StatusError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)}).Error()
		out.ErrorType = "status"
		c.logger.Warn("geoserver probe rejected", "url", c.base, "status", resp.StatusCode)
		return out
	}
	out.Connected = true

	var doc struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		out.ParseError = err.Error()
		return out
	}
	out.Workspaces = doc.Workspaces
	return out
}

// WorkspaceNames extracts names from the workspaces payload. GeoServer sends
// an empty string instead of an object when there are none.
func (p ProbeResult) WorkspaceNames() []string {
	var doc struct {
		Workspace []struct {
			Name string `json:"name"`
		} `json:"workspace"`
	}
	if len(p.Workspaces) == 0 || json.Unmarshal(p.Workspaces, &doc) != nil {
		return nil
	}
	names := make([]string, 0, len(doc.Workspace))
	for _, w := range doc.Workspace {
		names = append(names, w.Name)
	}
	return names
}

func errorType(err error) string {
	var (
		netErr net.Error
		urlErr *url.Error
		opErr  *net.OpError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &opErr):
		return "network"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &urlErr):
		return "transport"
	default:
		return fmt.Sprintf("%T", err)
	}
}
