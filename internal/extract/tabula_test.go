package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract_tables.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestTabulaRunner_DecodesRows(t *testing.T) {
	script := writeScript(t, `echo '[{"#": 1, "COMMODITY": "Rice", "PREVAILING PRICE": "45.00"}]'`)
	r := NewTabulaRunner("/bin/sh", script, 0)

	rows, err := r.Extract(context.Background(), "/tmp/b.pdf")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rice", rows[0]["COMMODITY"])
}

func TestTabulaRunner_NonZeroExit(t *testing.T) {
	script := writeScript(t, `echo '{"error":"PDF extraction failed"}' >&2; exit 1`)
	r := NewTabulaRunner("/bin/sh", script, 0)

	_, err := r.Extract(context.Background(), "/tmp/b.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction failed")
}

func TestTabulaRunner_MalformedJSON(t *testing.T) {
	script := writeScript(t, `echo 'not json at all'`)
	r := NewTabulaRunner("/bin/sh", script, 0)

	_, err := r.Extract(context.Background(), "/tmp/b.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JSON")
}
