package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/camera-gateway/internal/metrics"
)

// controlPath is the PTZ endpoint on the controller.
const controlPath = "/cgi-bin/ptz.cgi"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// RemoteError is returned when the controller answers with a non-200 status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("camera controller returned %d", e.StatusCode)
	}
	return fmt.Sprintf("camera controller returned %d: %s", e.StatusCode, e.Body)
}

// ClientConfig configures a controller client.
type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
}

// Client sends PTZ commands to the camera controller.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a client. httpClient defaults to http.DefaultClient.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse camera base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("camera base url %q must include scheme and host", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    u,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}, nil
}

// CommandURL returns the controller URL for cmd.
func (c *Client) CommandURL(cmd Command) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + controlPath
	u.RawQuery = cmd.Encode()
	return u.String()
}

// Send issues cmd as a single GET. Only a 200 response is success.
func (c *Client) Send(ctx context.Context, cmd Command) (err error) {
	defer func() { metrics.RecordRemoteOperation(PipelineName, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CommandURL(cmd), nil)
	if err != nil {
		return fmt.Errorf("build controller request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("camera controller request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return fmt.Errorf("read controller response: %w", readErr)
	}
	return nil
}
