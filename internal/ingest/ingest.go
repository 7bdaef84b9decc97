// Package ingest orchestrates the daily price pipeline for each configured
// region: locate the latest bulletin, download it, extract rows through the
// stage chain, normalize, persist, and hand the batch to the alert engine.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrilink/pricewatch/internal/download"
	"github.com/agrilink/pricewatch/internal/extract"
	"github.com/agrilink/pricewatch/internal/model"
	"github.com/agrilink/pricewatch/internal/normalize"
)

// Locator finds the newest bulletin URL on a region's index page.
// An empty URL with a nil error means no bulletin is available today.
type Locator interface {
	LatestDocumentURL(ctx context.Context, indexURL string) (string, error)
}

// Acquirer downloads a document to local disk and returns its path.
type Acquirer interface {
	Acquire(ctx context.Context, url, destDir, filename string) (string, error)
}

// Extractor turns a downloaded document into raw rows.
type Extractor interface {
	Run(ctx context.Context, src extract.Source) []extract.Row
}

// Alerter processes a persisted batch and returns the number of fired alerts.
type Alerter interface {
	Run(ctx context.Context, records []model.PriceRecord) (int, error)
}

// Store is the persistence subset the orchestrator needs.
type Store interface {
	InsertPrices(ctx context.Context, records []model.PriceRecord) (int64, error)
	StartRun(ctx context.Context, region string) (string, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, records, alerts int, note string) error
}

// Options tunes a Pipeline.
type Options struct {
	WorkDir string // scratch directory for downloaded PDFs
	KeepPDF bool   // skip cleanup, useful when diagnosing extraction
}

// Pipeline runs the ingestion flow. Regions are processed independently;
// one region's failure never aborts the others.
type Pipeline struct {
	locator  Locator
	acquirer Acquirer
	chain    Extractor
	alerter  Alerter
	store    Store
	opts     Options
}

// New creates a Pipeline. The alerter may be nil to disable alerting.
func New(locator Locator, acquirer Acquirer, chain Extractor, alerter Alerter, store Store, opts Options) *Pipeline {
	return &Pipeline{
		locator:  locator,
		acquirer: acquirer,
		chain:    chain,
		alerter:  alerter,
		store:    store,
		opts:     opts,
	}
}

// Run ingests every region in regions (name -> index URL) for the given
// date. It returns an error naming the regions that failed, after all
// regions have been attempted.
func (p *Pipeline) Run(ctx context.Context, regions map[string]string, date string) error {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		if err := p.runRegion(ctx, name, regions[name], date); err != nil {
			zap.L().Error("ingest: region run failed",
				zap.String("region", name), zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return eris.Errorf("ingest: %d of %d regions failed: %s",
			len(failed), len(names), strings.Join(failed, ", "))
	}
	return nil
}

func (p *Pipeline) runRegion(ctx context.Context, region, indexURL, date string) error {
	log := zap.L().With(zap.String("region", region), zap.String("date", date))

	runID, err := p.store.StartRun(ctx, region)
	if err != nil {
		log.Warn("ingest: audit log unavailable for this run", zap.Error(err))
	}
	status := model.RunFailed
	records, alerts := 0, 0
	note := ""
	defer func() {
		if runID == "" {
			return
		}
		if err := p.store.FinishRun(ctx, runID, status, records, alerts, note); err != nil {
			log.Warn("ingest: finish run record failed", zap.Error(err))
		}
	}()

	log.Info("ingest: locating bulletin", zap.String("index_url", indexURL))
	docURL, err := p.locator.LatestDocumentURL(ctx, indexURL)
	if err != nil {
		note = "locator error"
		return eris.Wrap(err, "ingest: locate bulletin")
	}
	if docURL == "" {
		log.Info("ingest: no bulletin published, nothing to do")
		status, note = model.RunNoData, "no bulletin found"
		return nil
	}

	log.Info("ingest: downloading", zap.String("url", docURL))
	pdfPath, err := p.acquirer.Acquire(ctx, docURL, p.opts.WorkDir, bulletinFilename(region, date))
	if err != nil {
		note = "download error"
		return eris.Wrap(err, "ingest: download bulletin")
	}
	defer func() {
		if p.opts.KeepPDF {
			log.Info("ingest: keeping downloaded file", zap.String("path", pdfPath))
			return
		}
		log.Info("ingest: cleanup", zap.String("path", pdfPath))
		download.Remove(pdfPath)
	}()

	log.Info("ingest: extracting", zap.String("path", pdfPath))
	rows := p.chain.Run(ctx, extract.Source{PDFPath: pdfPath, Region: region, Date: date})
	if len(rows) == 0 {
		log.Warn("ingest: all extraction stages yielded nothing")
		status, note = model.RunNoData, "extraction yielded no rows"
		return nil
	}

	log.Info("ingest: normalizing", zap.Int("rows", len(rows)))
	batch := normalize.Records(rows, region, date)
	if len(batch) == 0 {
		log.Warn("ingest: no rows survived normalization")
		status, note = model.RunNoData, "no valid records after normalization"
		return nil
	}

	log.Info("ingest: persisting", zap.Int("records", len(batch)))
	inserted, err := p.store.InsertPrices(ctx, batch)
	if err != nil {
		note = "persistence error"
		return eris.Wrap(err, "ingest: persist batch")
	}
	records = int(inserted)

	if p.alerter != nil {
		log.Info("ingest: dispatching alerts")
		n, err := p.alerter.Run(ctx, batch)
		if err != nil {
			// The batch is already persisted; a broken alert pass is
			// an incident to investigate, not a failed ingestion.
			log.Warn("ingest: alert pass failed", zap.Error(err))
			note = "alert pass failed"
		}
		alerts = n
	}

	status = model.RunOK
	log.Info("ingest: done", zap.Int("records", records), zap.Int("alerts", alerts))
	return nil
}

func bulletinFilename(region, date string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(region), " ", "-"))
	return fmt.Sprintf("%s-%s.pdf", slug, date)
}
