// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates the shared outbound client. A non-positive timeout
// falls back to 30s.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// BasicAuth wraps a transport so every request carries the given credentials.
type BasicAuth struct {
	Username string
	Password string
	Base     http.RoundTripper
}

func (b BasicAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	base := b.Base
	if base == nil {
		base = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	r.SetBasicAuth(b.Username, b.Password)
	return base.RoundTrip(r)
}

// WithBasicAuth returns a copy of c whose transport authenticates every call.
func WithBasicAuth(c *http.Client, username, password string) *http.Client {
	cp := *c
	cp.Transport = BasicAuth{Username: username, Password: password, Base: c.Transport}
	return &cp
}
