// Package normalize projects heterogeneous extraction-stage rows into
// canonical PriceRecords and deduplicates within a single ingestion run.
// This is the seam that keeps the rest of the pipeline stage-agnostic.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/agrilink/pricewatch/internal/extract"
	"github.com/agrilink/pricewatch/internal/model"
	"github.com/agrilink/pricewatch/internal/parse"
)

// Records converts stage rows into PriceRecords for one region and date.
// The parse helpers run uniformly regardless of which stage produced a row.
// Rows with an empty crop name or category are dropped here, before
// persistence, never stored with placeholders. Duplicates by composite key
// keep the first-seen row.
func Records(rows []extract.Row, region, date string) []model.PriceRecord {
	seen := make(map[string]struct{}, len(rows))
	out := make([]model.PriceRecord, 0, len(rows))

	dropped := 0
	for _, row := range rows {
		name := parse.CleanText(row.CropName)
		category := parse.CleanText(row.Category)
		if name == "" || category == "" {
			dropped++
			continue
		}

		spec := parse.CleanText(row.Specification)
		rec := model.PriceRecord{
			CropName:      name,
			Category:      category,
			Region:        region,
			Price:         parse.ParsePrice(row.Price),
			Unit:          inferUnit(row.Unit, spec),
			Specification: spec,
			Source:        row.Source,
			Date:          date,
		}

		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	if dropped > 0 {
		zap.L().Debug("normalize: dropped incomplete rows",
			zap.String("region", region),
			zap.Int("dropped", dropped),
		)
	}
	return out
}

// inferUnit resolves the unit from the unit cell first, then from the
// specification text (bulletins often bury "/kg" in the spec column).
func inferUnit(unit, spec string) string {
	if u := parse.CleanText(unit); u != "" {
		if inferred := parse.ExtractUnit(u); inferred != parse.DefaultUnit {
			return inferred
		}
		// A non-empty unit cell with no recognized keyword is kept as-is
		// when it already looks canonical (P/…).
		if strings.HasPrefix(u, "P/") {
			return u
		}
	}
	return parse.ExtractUnit(spec)
}
