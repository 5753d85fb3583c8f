// Package site talks to the deployed website over HTTP: it reads the
// revision marker files the remote updater maintains at the document root
// and triggers regeneration of derived pages after an update.
package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"livepush/internal/revision"
)

const (
	// Marker files maintained at the document root of each environment.
	MarkerRevision      = "REVISION"
	MarkerPriorRevision = "PRIOR-REVISION"

	// RegenEndpoint rebuilds the derived history and page-index files.
	RegenEndpoint = "regen.php"

	// DefaultTimeout bounds every marker and regen request so a wedged
	// server cannot hang the whole invocation.
	DefaultTimeout = 15 * time.Second

	// Marker files are single lines; anything bigger is not a marker.
	maxMarkerBytes = 4096
)

// Client fetches revision markers and fires the regeneration trigger.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the default request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewClientWithHTTP creates a client around a caller-supplied http.Client.
// Used by tests to point at a httptest server.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// FetchMarker reads one marker file from the site's document root and parses
// it as a revision string. A response that does not match the revision format
// is an error that must propagate; it is never silently substituted.
func (c *Client) FetchMarker(ctx context.Context, siteURL, marker string) (revision.Revision, error) {
	url := siteURL + "/" + marker

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return revision.Revision{}, fmt.Errorf("failed to build marker request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return revision.Revision{}, fmt.Errorf("failed to fetch %s from %s: %w", marker, siteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return revision.Revision{}, fmt.Errorf("failed to fetch %s from %s: HTTP %d (is the marker file present?)", marker, siteURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarkerBytes))
	if err != nil {
		return revision.Revision{}, fmt.Errorf("failed to read %s body: %w", marker, err)
	}

	rev, err := revision.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		return revision.Revision{}, fmt.Errorf("%s marker at %s: %w", marker, siteURL, err)
	}
	return rev, nil
}

// TriggerRegen requests regeneration of the derived pages. The response body
// and status are deliberately ignored: the endpoint reports nothing useful,
// and success is verified by the caller through the generated artifact files.
func (c *Client) TriggerRegen(ctx context.Context, siteURL string) error {
	url := siteURL + "/" + RegenEndpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build regen request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to trigger regeneration at %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxMarkerBytes))
	return nil
}
