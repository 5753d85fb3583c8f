// Package server implements the read-only HTTP status server.
//
// This package provides:
//   - Health endpoint listing the configured environments
//   - Live status endpoint reading the remote REVISION/PRIOR-REVISION markers
//   - History endpoint backed by the local deployment journal
//   - Per-IP rate limiting and structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/config: Environment configuration
//   - internal/site: Remote marker fetching
//   - internal/history: SQLite-based deployment journal
//
// The server never mutates anything: pushes and reverts are strictly
// interactive CLI operations.
package server
