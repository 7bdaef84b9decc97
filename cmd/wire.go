package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrilink/pricewatch/internal/alert"
	"github.com/agrilink/pricewatch/internal/download"
	"github.com/agrilink/pricewatch/internal/extract"
	"github.com/agrilink/pricewatch/internal/ingest"
	"github.com/agrilink/pricewatch/internal/locator"
	"github.com/agrilink/pricewatch/internal/ocr"
	"github.com/agrilink/pricewatch/internal/store"
	"github.com/agrilink/pricewatch/pkg/llm"
	"github.com/agrilink/pricewatch/pkg/sms"
)

func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store database URL is required (PRICEWATCH_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
}

// buildChain assembles the extraction fallback chain: structured table
// extraction first, then plain text through the LLM, then OCR-backed text
// through the LLM.
func buildChain() (*extract.Chain, error) {
	runner := extract.NewTabulaRunner(cfg.Tabula.Python, cfg.Tabula.Script,
		time.Duration(cfg.Tabula.TimeoutSecs)*time.Second)
	tabula := extract.NewTabulaStage(runner, cfg.Tabula.MinRows)

	text, err := ocr.NewExtractor(ocr.Options{
		Provider:      "local",
		PdfToTextPath: cfg.OCR.PdfToTextPath,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init text extractor")
	}

	var ocrFallback ocr.Extractor
	if cfg.OCR.Provider != "" && cfg.OCR.Provider != "local" {
		ocrFallback, err = ocr.NewExtractor(ocr.Options{
			Provider:     cfg.OCR.Provider,
			MistralKey:   cfg.OCR.MistralKey,
			MistralModel: cfg.OCR.MistralModel,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init ocr fallback")
		}
	}

	if cfg.LLM.Key == "" {
		return nil, eris.New("llm key is required (PRICEWATCH_LLM_KEY)")
	}
	stage := extract.NewLLMStage(text, ocrFallback, llm.NewClient(cfg.LLM.Key), extract.LLMOptions{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Concurrency: cfg.LLM.Concurrency,
		ChunkLines:  cfg.LLM.ChunkLines,
	})

	return extract.NewChain(tabula, stage), nil
}

func buildAlerter(st store.Store) ingest.Alerter {
	if !cfg.Alert.Enabled {
		return nil
	}
	var dispatcher alert.Dispatcher
	if cfg.SMS.Key != "" {
		opts := []sms.Option{}
		if cfg.SMS.BaseURL != "" {
			opts = append(opts, sms.WithBaseURL(cfg.SMS.BaseURL))
		}
		dispatcher = sms.NewClient(cfg.SMS.Key, cfg.SMS.Sender, opts...)
	}
	return alert.NewEngine(st, dispatcher, alert.Options{LookbackDays: cfg.Alert.LookbackDays})
}

func buildPipeline(st store.Store, keepPDF bool) (*ingest.Pipeline, error) {
	chain, err := buildChain()
	if err != nil {
		return nil, err
	}

	loc := locator.New(locator.Options{
		UserAgent:  cfg.Source.UserAgent,
		Timeout:    time.Duration(cfg.Source.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Source.RatePerSec,
	})
	acquirer := download.New(time.Duration(cfg.Source.TimeoutSecs) * time.Second)

	return ingest.New(loc, acquirer, chain, buildAlerter(st), st, ingest.Options{
		WorkDir: cfg.Source.WorkDir,
		KeepPDF: keepPDF,
	}), nil
}
