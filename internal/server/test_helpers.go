package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"livepush/internal/config"
	"livepush/internal/history"
	"livepush/internal/revision"
)

// fakeMarkerFetcher serves canned marker content per site URL.
// This is a test helper shared across multiple test files.
type fakeMarkerFetcher struct {
	markers map[string]string // "<siteURL>/<marker>" -> raw content
}

func (f *fakeMarkerFetcher) FetchMarker(ctx context.Context, siteURL, marker string) (revision.Revision, error) {
	raw, ok := f.markers[siteURL+"/"+marker]
	if !ok {
		return revision.Revision{}, fmt.Errorf("failed to fetch %s from %s: HTTP 404", marker, siteURL)
	}
	return revision.Parse(raw)
}

// testConfig returns a minimal valid two-environment configuration.
func testConfig() *config.Config {
	return &config.Config{
		SourceBranch: "master",
		Environments: map[string]*config.Environment{
			"staging": {
				Name:    "staging",
				Host:    "staging.example.org",
				Path:    "/var/www/staging",
				SiteURL: "https://staging.example.org",
			},
			"live": {
				Name:    "live",
				Host:    "www.example.org",
				Path:    "/var/www/site",
				SiteURL: "https://www.example.org",
			},
		},
	}
}

// newTestServer builds a server around a fake marker fetcher and an optional
// journal, with logging discarded.
func newTestServer(journal *history.Journal, markers map[string]string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(testConfig(), journal, &fakeMarkerFetcher{markers: markers}, logger, true)
}
