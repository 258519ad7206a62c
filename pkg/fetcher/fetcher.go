// Package fetcher implements the archive fetcher (C2): download a URL
// to disk, subject to a content-type allowlist predicate.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrDownloadFailed is returned when the upstream response is not 200.
var ErrDownloadFailed = errors.New("download failed")

// ErrDownloadRejected is returned when the accept predicate rejects the response.
var ErrDownloadRejected = errors.New("download rejected")

// AcceptPredicate decides whether a response is acceptable for download,
// given the URL requested and the response headers received.
type AcceptPredicate func(url string, header http.Header) bool

// DefaultAccept accepts exactly the content types the pipeline allows by
// default (spec §4.2): application/zip and application/x-gtar.
func DefaultAccept(_ string, header http.Header) bool {
	switch header.Get("Content-Type") {
	case "application/zip", "application/x-gtar":
		return true
	default:
		return false
	}
}

// Fetcher downloads archives using a shared HTTP client (spec §5: "a
// single HTTP client is shared for fetches").
type Fetcher struct {
	Client *http.Client
}

// New returns a Fetcher using client. If client is nil, http.DefaultClient is used.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client}
}

// Fetch downloads url to destPath, honouring accept, and returns the
// response's Content-Type. The response body is always closed, on every
// exit path. The archive is written to a temporary sibling file and
// renamed into place, so a reader can never observe a partial archive at
// destPath — the same atomic-write idiom as the teacher's
// pkg/utils.MoveFile.
//
// Per spec §4.2, the body is read fully into memory before being
// written; this is a known limitation for very large archives (§9).
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string, accept AcceptPredicate) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed building request")
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrDownloadFailed
	}

	if accept != nil && !accept(url, resp.Header) {
		return "", ErrDownloadRejected
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed reading response body")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", errors.Wrap(err, "failed creating destination directory")
	}

	tmpPath := destPath + ".part"
	if err := os.WriteFile(tmpPath, body, 0644); err != nil {
		return "", errors.Wrap(err, "failed writing archive to disk")
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", errors.Wrap(err, "failed finalizing archive on disk")
	}

	return resp.Header.Get("Content-Type"), nil
}
