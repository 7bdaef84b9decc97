package locator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body>
<h2>Announcements</h2>
<h2>Daily Price Monitoring Reports</h2>
<table>
  <tr><th>Date</th><th>Report</th></tr>
  <tr><td>August 28, 2026</td><td><a href="/files/dpm-2026-08-28.pdf">Download</a></td></tr>
  <tr><td>August 27, 2026</td><td><a href="/files/dpm-2026-08-27.pdf">Download</a></td></tr>
</table>
</body></html>`

func TestLatestDocumentURL_PicksFirstRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(indexPage))
	}))
	defer srv.Close()

	l := New(Options{Timeout: 5 * time.Second})
	got, err := l.LatestDocumentURL(context.Background(), srv.URL+"/index")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/files/dpm-2026-08-28.pdf", got)
}

func TestLatestDocumentURL_MissingLandmark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h2>Press Releases</h2><table><tr><td><a href="/x.pdf">x</a></td></tr></table></body></html>`))
	}))
	defer srv.Close()

	l := New(Options{})
	got, err := l.LatestDocumentURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestDocumentURL_TableWithoutPDFLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h2>Daily Price Monitoring</h2><table><tr><td>no links here</td></tr></table></body></html>`))
	}))
	defer srv.Close()

	l := New(Options{})
	got, err := l.LatestDocumentURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestDocumentURL_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := New(Options{})
	got, err := l.LatestDocumentURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestDocumentURL_Unreachable(t *testing.T) {
	l := New(Options{Timeout: 500 * time.Millisecond})
	got, err := l.LatestDocumentURL(context.Background(), "http://127.0.0.1:1/nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}
