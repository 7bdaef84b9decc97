// Package download acquires bulletin PDFs to local temp storage and owns
// their removal.
package download

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DownloadError marks a failed acquisition (non-200 response or filesystem
// write failure). Callers can distinguish it from context errors via
// eris/errors.As.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return "download " + e.URL + ": " + e.Err.Error()
	}
	return "download " + e.URL + ": unexpected status"
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Acquirer downloads files over HTTP with a bounded timeout.
type Acquirer struct {
	client *http.Client
}

// New creates an Acquirer. A zero timeout defaults to two minutes; bulletin
// PDFs are small but the agency site is slow.
func New(timeout time.Duration) *Acquirer {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Acquirer{client: &http.Client{Timeout: timeout}}
}

// Acquire streams the document at url into destDir/filename, creating
// destDir if absent, and returns the local path. The caller owns the file's
// lifecycle and must Remove it when the ingestion run ends.
func (a *Acquirer) Acquire(ctx context.Context, url, destDir, filename string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "create dest dir")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "build request")}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "fetch")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	dest := filepath.Join(destDir, filename)
	f, err := os.Create(dest)
	if err != nil {
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "create file")}
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "write file")}
	}
	if err := f.Close(); err != nil {
		return "", &DownloadError{URL: url, Err: eris.Wrap(err, "close file")}
	}

	zap.L().Debug("download: acquired document",
		zap.String("url", url),
		zap.String("path", dest),
	)
	return dest, nil
}

// Remove deletes an acquired file. An empty path or an already-missing file
// is a no-op: cleanup runs unconditionally at the end of every run, whether
// or not an acquisition happened.
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("download: remove temp file", zap.String("path", path), zap.Error(err))
	}
}
