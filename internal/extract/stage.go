// Package extract implements the ordered fallback chain of bulletin
// extraction strategies: deterministic table extraction, then raw text fed
// to an LLM, with OCR backing the text path for scanned documents.
package extract

import (
	"context"

	"go.uber.org/zap"
)

// Source identifies one bulletin to extract from.
type Source struct {
	PDFPath string
	Region  string
	Date    string // YYYY-MM-DD, the bulletin's nominal date
}

// Row is one candidate price entry as emitted by a stage. Fields are raw
// strings; the normalizer owns parsing and validation so stages can vary
// wildly in how they recover these columns.
type Row struct {
	CropName      string
	Category      string
	Specification string
	Price         string
	Unit          string
	Source        string // provenance tag of the producing stage/tool
}

// Stage is one extraction strategy. A stage returns its candidate rows or
// an error; an empty result and an error are treated the same by the chain.
type Stage interface {
	Name() string
	Extract(ctx context.Context, src Source) ([]Row, error)
}

// Chain tries stages in priority order, returning the first non-empty
// result. A stage failure is a stage-local event: it is logged and the next
// stage runs. An exhausted chain yields zero rows, which the orchestrator
// reports as a warning rather than an error.
type Chain struct {
	stages []Stage
}

// NewChain creates a Chain over the given stages, tried in order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Run executes the chain against one source.
func (c *Chain) Run(ctx context.Context, src Source) []Row {
	log := zap.L().With(
		zap.String("component", "extract.chain"),
		zap.String("region", src.Region),
		zap.String("date", src.Date),
	)

	for _, s := range c.stages {
		if ctx.Err() != nil {
			return nil
		}

		rows, err := s.Extract(ctx, src)
		if err != nil {
			log.Warn("extract: stage failed, trying next",
				zap.String("stage", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if len(rows) == 0 {
			log.Warn("extract: stage yielded no rows, trying next",
				zap.String("stage", s.Name()),
			)
			continue
		}

		log.Info("extract: stage succeeded",
			zap.String("stage", s.Name()),
			zap.Int("rows", len(rows)),
		)
		return rows
	}

	log.Warn("extract: all stages exhausted")
	return nil
}
