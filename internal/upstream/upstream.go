// Package upstream holds the transport plumbing shared by the Permit.io
// cloud client and the local PDP client: credential injection and the
// two-bucket error taxonomy (HTTP status passthrough vs 503 on transport
// failure).
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"smaug.org/internal/obs"
)

// StatusError is a non-2xx upstream response. The status code and raw body
// are relayed to the original caller verbatim; no translation.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Service, e.StatusCode, e.Body)
}

// TransportError is a network-level failure (DNS, connect, timeout). It maps
// to 503 at the HTTP boundary. The message names the target service but
// never the credential.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error connecting to %s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Caller issues authenticated requests against one upstream base URL.
type Caller struct {
	Service string // label used in errors and metrics
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Do builds <base><path>, injects the bearer credential and executes the
// request. A completed exchange is always returned to the caller, whatever
// the status; a failed exchange comes back as *TransportError. The response
// body is fully read and the connection released before returning.
func (c *Caller) Do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build %s request: %w", c.Service, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	obs.Logger().Info("upstream request",
		zap.String("service", c.Service),
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		obs.ObserveUpstream(c.Service, "transport_error")
		return 0, nil, nil, &TransportError{Service: c.Service, Err: err}
	}
	defer resp.Body.Close()

	obs.ObserveUpstream(c.Service, strconv.Itoa(resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, &TransportError{Service: c.Service, Err: err}
	}
	return resp.StatusCode, data, resp.Header, nil
}
