// Package ocr recovers text from bulletin PDFs. The local provider shells
// out to pdftotext; the mistral provider sends the document to the Mistral
// OCR API for scanned bulletins that carry no text layer.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"
)

// Extractor extracts text content from a PDF file.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Options selects and configures an OCR provider.
type Options struct {
	Provider      string // "local" (default) or "mistral"
	PdfToTextPath string
	MistralKey    string
	MistralModel  string
}

// NewExtractor creates an Extractor for the configured provider.
func NewExtractor(opts Options) (Extractor, error) {
	switch opts.Provider {
	case "local", "":
		return NewPdfToText(opts.PdfToTextPath), nil
	case "mistral":
		if opts.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires an API key")
		}
		return NewMistralOCR(opts.MistralKey, opts.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", opts.Provider)
	}
}
