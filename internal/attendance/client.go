// Package attendance is a client for the attendance backend: live check-in,
// batch room recognition, event lookup and host session control.
package attendance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/log"
)

// Client talks to the attendance API.
type Client struct {
	URL        string
	parsedURL  *url.URL
	token      string
	httpClient *http.Client
	captureDir string
	location   *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// NewClient creates a client for the API rooted at rawURL (for example
// http://localhost:8000/api). token is sent as a bearer token when set.
func NewClient(rawURL, token string) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("attendance API URL is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid attendance API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid attendance API URL scheme %q", parsed.Scheme)
	}

	return &Client{
		URL:        parsed.String(),
		parsedURL:  parsed,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		location:   time.Local,
		now:        time.Now,
		logger:     log.WithComponent("attendance"),
	}, nil
}

// WithToken returns a copy of c that authenticates as token. The backend
// identifies the attendee of a live check-in by this token. Transport,
// location, logger and capture directory are shared with c.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// SetHTTPClient replaces the transport client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetLocation sets the zone event dates and times are interpreted in. The
// backend stores naive local times.
func (c *Client) SetLocation(loc *time.Location) {
	if loc != nil {
		c.location = loc
	}
}

// SetLogger replaces the client logger.
func (c *Client) SetLogger(l zerolog.Logger) {
	c.logger = l
}

// resolveURL joins path segments onto the API root. The backend routes end
// in a slash.
func (c *Client) resolveURL(segments ...string) string {
	u := c.parsedURL.JoinPath(segments...)
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
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

// captureResponse saves a response body to the capture directory, if set.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	name := strings.Trim(strings.ReplaceAll(endpoint, "/", "_"), "_")
	name = fmt.Sprintf("%s_%s.json", name, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(c.captureDir, name)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		body = pretty.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("failed to capture response")
	}
}
