// Package backend is the client for the attendance backend API: face
// enrollment, attendance marking, roster listing and aggregate stats.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/attendance-kiosk/internal/logger"
)

// Client talks to the attendance backend. Every call sends exactly one request.
type Client struct {
	Url        string
	parsedURL  *url.URL
	token      string
	httpClient *http.Client
	captureDir string
	markers    []string
	log        *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request, including reading the response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithDuplicateMarkers replaces the message fragments that identify a
// duplicate-face enrollment rejection.
func WithDuplicateMarkers(markers []string) Option {
	return func(c *Client) {
		if len(markers) > 0 {
			c.markers = markers
		}
	}
}

// WithCaptureDir saves every response body to dir (see SetCaptureDir).
func WithCaptureDir(dir string) Option {
	return func(c *Client) {
		if err := c.SetCaptureDir(dir); err != nil {
			c.log.Warn().Err(err).Str("dir", dir).Msg("response capture disabled")
		}
	}
}

// NewClient creates a client for the backend at rawURL (e.g. http://localhost:5000).
// The token may be empty; the Authorization header is sent regardless.
func NewClient(rawURL, token string, opts ...Option) (*Client, error) {
	rawURL = strings.TrimRight(strings.TrimSpace(rawURL), "/")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing host", rawURL)
	}

	c := &Client{
		Url:        rawURL,
		parsedURL:  parsed.JoinPath("api"),
		token:      token,
		httpClient: &http.Client{},
		markers:    DefaultDuplicateMarkers,
		log:        logger.Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// resolveURL joins path segments onto the API base.
func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// SetCaptureDir enables response capturing to dir. An empty dir disables it.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves a response body named after the endpoint and time.
func (c *Client) captureResponse(endpoint string, status int, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := strings.ReplaceAll(endpoint, "/", "_")
	filename = strings.TrimPrefix(filename, "_")
	timestamp := time.Now().Format("20060102_150405.000")
	filename = fmt.Sprintf("%s_%d_%s.json", filename, status, timestamp)

	path := filepath.Join(c.captureDir, filename)

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("failed to capture response")
	}
}
