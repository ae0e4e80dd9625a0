// Package limsapi is a minimal client for the LIMS REST API (v2). It exposes
// processes, artifacts, samples, and projects as entities carrying UDF
// mappings, plus the traversals and file retrieval the EPP scripts need.
package limsapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const apiRoot = "api/v2"

// Client talks to one LIMS instance using HTTP basic auth.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
	log      *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New constructs a client for the given base URI and credentials.
func New(baseURI, username, password string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return nil, fmt.Errorf("parse base uri: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base uri %q missing scheme or host", baseURI)
	}
	c := &Client{
		baseURL:  u,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURI returns the configured LIMS base URI.
func (c *Client) BaseURI() string { return c.baseURL.String() }

func (c *Client) endpoint(parts ...string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + apiRoot + "/" + strings.Join(parts, "/")
	return u.String()
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/xml")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.log.Debug("lims request", zap.String("method", method), zap.String("url", rawURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

// getXML fetches rawURL and decodes the XML payload into v.
func (c *Client) getXML(ctx context.Context, rawURL string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if err := xml.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// putXML encodes v and PUTs it to rawURL, returning the HTTP status.
func (c *Client) putXML(ctx context.Context, rawURL string, v any) (int, error) {
	payload, err := xml.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", rawURL, err)
	}
	resp, err := c.do(ctx, http.MethodPut, rawURL, bytes.NewReader(payload), "application/xml")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("PUT %s: status %d: %s", rawURL, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.StatusCode, nil
}

type versionList struct {
	XMLName  xml.Name `xml:"versions"`
	Versions []struct {
		Major string `xml:"major,attr"`
		URI   string `xml:"uri,attr"`
	} `xml:"version"`
}

// CheckVersion verifies the server speaks the v2 API this client targets.
func (c *Client) CheckVersion(ctx context.Context) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/api"
	var versions versionList
	if err := c.getXML(ctx, u.String(), &versions); err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	for _, v := range versions.Versions {
		if v.Major == "v2" {
			return nil
		}
	}
	return fmt.Errorf("LIMS at %s does not expose API v2", c.baseURL)
}

// Download streams the content of an uploaded file by its file id.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	rawURL := c.endpoint("files", fileID, "download")
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
