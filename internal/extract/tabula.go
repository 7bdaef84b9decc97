package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
)

// TableExtractor is the port to the external deterministic table tool. The
// stable boundary is its JSON contract: a JSON array of loosely-typed row
// objects on stdout, keys varying per document.
type TableExtractor interface {
	Extract(ctx context.Context, pdfPath string) ([]map[string]any, error)
}

// TabulaRunner invokes the tabula wrapper script as a subprocess.
type TabulaRunner struct {
	python  string
	script  string
	timeout time.Duration
}

// NewTabulaRunner creates a TabulaRunner. Empty python defaults to
// "python3"; a zero timeout defaults to two minutes.
func NewTabulaRunner(python, script string, timeout time.Duration) *TabulaRunner {
	if python == "" {
		python = "python3"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &TabulaRunner{python: python, script: script, timeout: timeout}
}

// Extract runs the wrapper script against the PDF and decodes its stdout.
// Non-zero exit or malformed JSON is a hard failure for the structured
// stage; the chain handles the fallback.
func (t *TabulaRunner) Extract(ctx context.Context, pdfPath string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.python, t.script, pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "tabula: extraction failed for %s: %s", pdfPath, stderr.String())
	}

	var rows []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		return nil, eris.Wrapf(err, "tabula: malformed JSON output for %s", pdfPath)
	}
	return rows, nil
}
