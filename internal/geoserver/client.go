// Package geoserver talks to a GeoServer instance: WFS-T transactions,
// connectivity probes and the REST calls that publish the feature layers.
package geoserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/httpclient"
	"github.com/mohammed-shakir/geosync/internal/core/observability"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
)

// maxBody caps how much of an upstream body is read into memory.
const maxBody = 1 << 20

type Client struct {
	logger    *slog.Logger
	http      *http.Client
	base      string
	workspace string
	username  string
	now       func() time.Time // for tests
}

// New wraps hc with Basic auth for the configured GeoServer user. hc is
// shared and not modified.
func New(logger *slog.Logger, hc *http.Client, cfg config.GeoServer) *Client {
	if hc == nil {
		hc = httpclient.NewOutbound(0)
	}
	return &Client{
		logger:    logger,
		http:      httpclient.WithBasicAuth(hc, cfg.Username, cfg.Password),
		base:      cfg.URL,
		workspace: cfg.Workspace,
		username:  cfg.Username,
		now:       time.Now,
	}
}

// Namespace is the prefix/URI pair transactions for this workspace use.
func (c *Client) Namespace() ogc.Namespace {
	return ogc.Namespace{Prefix: c.workspace, URI: ogc.NamespaceURI(c.base, c.workspace)}
}

type response struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (r response) ok() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// do sends one request and reads at most maxBody bytes of the reply. A non
// 2xx status is not an error here; callers decide what it means.
func (c *Client) do(ctx context.Context, call, method, url, contentType string, body []byte) (response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return response{}, fmt.Errorf("build %s request: %w", call, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/xml;q=0.9, */*;q=0.1")

	start := c.now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("geoserver", call, time.Since(start).Seconds())
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", call, err)
	}
	c.logger.Debug("geoserver call",
		"call", call,
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())
	return response{StatusCode: resp.StatusCode, Status: resp.Status, Body: b}, nil
}

// Transaction posts a WFS-T document to the global WFS endpoint. Transport
// failures, non-2xx replies and exception reports all return an error; the
// result still carries whatever status and body were received.
func (c *Client) Transaction(ctx context.Context, doc string) (TransactionResult, error) {
	resp, err := c.do(ctx, "transaction", http.MethodPost, ogc.WFSEndpoint(c.base), "text/xml", []byte(doc))
	if err != nil {
		return TransactionResult{}, err
	}
	res := TransactionResult{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	if !resp.ok() {
		return res, &StatusError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)}
	}
	if err := parseTransactionResponse(resp.Body, &res); err != nil {
		return res, err
	}
	return res, nil
}

func snippet(b []byte) string {
	const n = 512
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
