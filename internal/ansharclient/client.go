// Package ansharclient is the outbound HTTP client the Anshar Ingestion
// Controller uses for polling GETs, subscription POSTs, and Tiamat refresh
// GETs. Grounded on the teacher's fluxforge/agent/heartbeat.go (bytes.Buffer
// + http.Post + status-code check style); rate limiting is new, using
// golang.org/x/time/rate so a slow or flapping upstream is never hammered
// on every scheduler tick regardless of how many triggers fire concurrently.
package ansharclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	clientNameHeader = "ET-Client-Name"
	clientIDHeader   = "ET-Client-ID"
	clientName       = "Ukur"
	unknownHostID    = "Ukur-UnknownHost"
)

// Client performs rate-limited SIRI HTTP requests against upstream endpoints.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	clientID string
}

// New builds a Client. rps and burst configure the token bucket shared by
// every outbound call this Client makes, regardless of destination.
func New(rps float64, burst int, timeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		clientID: resolveClientID(),
	}
}

func resolveClientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return unknownHostID
	}
	return host
}

// Get issues a rate-limited GET to url, returning the raw response body.
// Callers are responsible for decoding it (siri.DecodeServiceDelivery for
// SIRI endpoints, verbatim bytes for Tiamat).
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ansharclient: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ansharclient: build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ansharclient: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ansharclient: read body from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ansharclient: GET %s: status %d", url, resp.StatusCode)
	}
	return body, nil
}

// Post issues a rate-limited POST of body (application/xml) to url.
func (c *Client) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ansharclient: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ansharclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ansharclient: POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ansharclient: read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ansharclient: POST %s: status %d", url, resp.StatusCode)
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set(clientNameHeader, clientName)
	req.Header.Set(clientIDHeader, c.clientID)
}
