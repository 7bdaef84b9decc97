package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrilink/pricewatch/internal/ocr"
	"github.com/agrilink/pricewatch/internal/resilience"
	"github.com/agrilink/pricewatch/pkg/llm"
)

// Provenance tags for the text-based stage, by text source.
const (
	SourceLLM    = "llm"
	SourceOCRLLM = "ocr+llm"
)

const (
	// minUsableTextLen is the threshold below which pdftotext output is
	// considered unusable (scanned bulletin) and the OCR fallback runs.
	minUsableTextLen = 50

	// maxChunkLines bounds the lines per LLM request to respect token
	// limits on dense bulletins.
	maxChunkLines = 50

	defaultConcurrency = 4
	defaultMaxTokens   = 4096
)

// extractionPrompt demands a fixed 5-column pipe table. "UNKNOWN CROP" and
// the empty-specification rule keep the column count stable for the parser
// even when the model is unsure.
const extractionPrompt = `You are extracting commodity prices from a government daily market price bulletin.

Below is raw text from the bulletin. Produce a pipe-delimited table with exactly these 5 columns:

crop_name|category|specification|price|unit

Rules:
- Output the header line first, then one line per commodity entry.
- Every line must have exactly 5 pipe-separated columns.
- If a crop name is unreadable or ambiguous, write UNKNOWN CROP instead of omitting the row.
- If a specification is missing, leave that column empty instead of omitting it.
- Write N/A for a price shown as not available.
- Output nothing before or after the table.

Bulletin text:
%s`

// LLMOptions configures the text+LLM stage.
type LLMOptions struct {
	Model       string
	MaxTokens   int64
	Concurrency int
	// ChunkLines overrides the default lines-per-chunk bound.
	ChunkLines int
}

// LLMStage is the fallback extraction strategy: recover text (pdftotext,
// else OCR), chunk it, and have the model emit a pipe table per chunk.
type LLMStage struct {
	text   ocr.Extractor // primary text source (pdftotext)
	ocr    ocr.Extractor // fallback for scanned bulletins; may be nil
	client llm.Client
	opts   LLMOptions
	retry  resilience.RetryConfig
}

// NewLLMStage creates the text+LLM stage. ocrFallback may be nil, in which
// case a scanned bulletin simply fails this stage.
func NewLLMStage(text, ocrFallback ocr.Extractor, client llm.Client, opts LLMOptions) *LLMStage {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.ChunkLines <= 0 {
		opts.ChunkLines = maxChunkLines
	}
	return &LLMStage{
		text:   text,
		ocr:    ocrFallback,
		client: client,
		opts:   opts,
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Name implements Stage.
func (s *LLMStage) Name() string { return "text+llm" }

// Extract implements Stage. Each sub-chunk is processed independently; a
// chunk's failure (API error, malformed table) is logged and does not abort
// the other chunks. Partial extraction is expected and acceptable.
func (s *LLMStage) Extract(ctx context.Context, src Source) ([]Row, error) {
	log := zap.L().With(
		zap.String("component", "extract.llm"),
		zap.String("region", src.Region),
	)

	text, source, err := s.usableText(ctx, src.PDFPath, log)
	if err != nil {
		return nil, err
	}

	chunks := chunkLines(text, s.opts.ChunkLines)
	log.Debug("extract: chunked bulletin text", zap.Int("chunks", len(chunks)))

	var (
		mu   sync.Mutex
		rows []Row
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			chunkRows, err := s.extractChunk(gCtx, chunk, source)
			if err != nil {
				log.Warn("extract: chunk failed",
					zap.Int("chunk", i),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			rows = append(rows, chunkRows...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return rows, nil
}

// usableText returns bulletin text from pdftotext, falling back to OCR when
// the text layer is missing or too short to be real content.
func (s *LLMStage) usableText(ctx context.Context, pdfPath string, log *zap.Logger) (text, source string, err error) {
	text, err = s.text.ExtractText(ctx, pdfPath)
	if err == nil && len(strings.TrimSpace(text)) >= minUsableTextLen {
		return text, SourceLLM, nil
	}
	if err != nil {
		log.Warn("extract: text extraction failed, trying OCR", zap.Error(err))
	} else {
		log.Info("extract: text layer too short, trying OCR",
			zap.Int("chars", len(strings.TrimSpace(text))),
		)
	}

	if s.ocr == nil {
		return "", "", fmt.Errorf("extract: no usable text layer and no OCR fallback configured")
	}

	text, err = s.ocr.ExtractText(ctx, pdfPath)
	if err != nil {
		return "", "", err
	}
	if len(strings.TrimSpace(text)) < minUsableTextLen {
		return "", "", fmt.Errorf("extract: OCR output too short (%d chars)", len(strings.TrimSpace(text)))
	}
	return text, SourceOCRLLM, nil
}

// extractChunk sends one chunk to the model and parses the pipe table.
func (s *LLMStage) extractChunk(ctx context.Context, chunk, source string) ([]Row, error) {
	var resp *llm.MessageResponse
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.client.CreateMessage(ctx, llm.MessageRequest{
			Model:     s.opts.Model,
			MaxTokens: s.opts.MaxTokens,
			Messages: []llm.Message{
				{Role: "user", Content: fmt.Sprintf(extractionPrompt, chunk)},
			},
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.Log(s.opts.Model, "price-extraction")
	return parsePipeTable(resp.Text(), source), nil
}

// chunkLines splits text into line-based chunks of at most maxLines lines.
// Blank lines are dropped; they carry no commodity data.
func chunkLines(text string, maxLines int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	var chunks []string
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, strings.Join(lines[start:end], "\n"))
	}
	return chunks
}

// parsePipeTable parses the model's response. The header line and any line
// that does not split into at least 5 parts are discarded; malformed model
// output costs individual lines, never the chunk.
func parsePipeTable(text, source string) []Row {
	var rows []Row
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if strings.EqualFold(parts[0], "crop_name") {
			continue
		}
		rows = append(rows, Row{
			CropName:      parts[0],
			Category:      parts[1],
			Specification: parts[2],
			Price:         parts[3],
			Unit:          parts[4],
			Source:        source,
		})
	}
	return rows
}
