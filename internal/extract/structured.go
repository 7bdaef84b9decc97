package extract

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SourceTabula tags records recovered by the deterministic table tool.
const SourceTabula = "tabula"

// defaultMinDataRows is the plausibility floor for the structured attempt.
// Bulletins always carry dozens of commodities; fewer plausible rows means
// the table tool misread the layout and the chain should fall through.
const defaultMinDataRows = 5

// Column-role detection fragments. Bulletin layouts rotate header wording
// between documents, so roles are matched by substring, not exact name.
var (
	idFragments    = []string{"#", "no.", "unnamed: 0"}
	nameFragments  = []string{"commodity", "crop", "item"}
	specFragments  = []string{"spec"}
	priceFragments = []string{"price", "prevailing"}
	unitFragments  = []string{"unit"}
)

// skipFragments identify repeated header/footer rows inside the extracted
// table body.
var skipFragments = []string{
	"commodity", "specification", "prevailing", "source:", "page ", "as of",
}

// TabulaStage is the first extraction strategy: deterministic table
// extraction plus layout heuristics.
type TabulaStage struct {
	tables  TableExtractor
	minRows int
}

// NewTabulaStage creates the structured stage. minRows <= 0 selects the
// default plausibility floor.
func NewTabulaStage(tables TableExtractor, minRows int) *TabulaStage {
	if minRows <= 0 {
		minRows = defaultMinDataRows
	}
	return &TabulaStage{tables: tables, minRows: minRows}
}

// Name implements Stage.
func (s *TabulaStage) Name() string { return "tabula" }

// Extract implements Stage. The whole structured attempt is rejected (so
// the chain falls through) when fewer than minRows plausible data rows are
// found or the expected columns are entirely absent.
func (s *TabulaStage) Extract(ctx context.Context, src Source) ([]Row, error) {
	raw, err := s.tables.Extract(ctx, src.PDFPath)
	if err != nil {
		return nil, err
	}

	rows := s.project(raw)
	if err := s.validate(raw, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// project walks the loosely-typed rows, detecting category-header rows and
// carrying the category forward onto subsequent item rows until the next
// category row.
func (s *TabulaStage) project(raw []map[string]any) []Row {
	var (
		out      []Row
		category string
	)

	for _, r := range raw {
		id := cellFor(r, idFragments)
		name := cellFor(r, nameFragments)
		spec := cellFor(r, specFragments)
		price := cellFor(r, priceFragments)
		unit := cellFor(r, unitFragments)

		// Category header: single-letter marker with the group name in the
		// adjacent column and no price.
		if isCategoryMarker(id) && name != "" && price == "" {
			category = name
			continue
		}

		if isSkipRow(name) || isSkipRow(spec) {
			continue
		}

		// Data rows carry a purely-numeric leading identifier and a name.
		if !isNumeric(id) || name == "" {
			continue
		}

		out = append(out, Row{
			CropName:      name,
			Category:      category,
			Specification: spec,
			Price:         price,
			Unit:          unit,
			Source:        SourceTabula,
		})
	}
	return out
}

// validate rejects the structured attempt when the output is implausible.
func (s *TabulaStage) validate(raw []map[string]any, rows []Row) error {
	if len(raw) == 0 {
		return eris.New("tabula: no tables extracted")
	}

	nameCols := 0
	for _, r := range raw {
		if keyFor(r, nameFragments) != "" {
			nameCols++
		}
	}
	if nameCols == 0 {
		return eris.New("tabula: commodity column absent from every table")
	}

	if len(rows) < s.minRows {
		zap.L().Debug("tabula: too few plausible data rows",
			zap.Int("rows", len(rows)),
			zap.Int("min", s.minRows),
		)
		return eris.Errorf("tabula: only %d plausible data rows (minimum %d)", len(rows), s.minRows)
	}
	return nil
}

// keyFor finds the map key whose lowercased form contains any fragment.
// Keys are scanned in sorted order so detection is deterministic.
func keyFor(row map[string]any, fragments []string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		lk := strings.ToLower(k)
		for _, f := range fragments {
			if strings.Contains(lk, f) {
				return k
			}
		}
	}
	return ""
}

// cellFor returns the trimmed string value of the column matching the
// fragments, or "" when the column is absent.
func cellFor(row map[string]any, fragments []string) string {
	k := keyFor(row, fragments)
	if k == "" {
		return ""
	}
	return stringify(row[k])
}

// stringify renders a loosely-typed JSON cell. Floats drop a trailing .0
// so numeric identifiers compare as digits.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func isCategoryMarker(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSkipRow(s string) bool {
	ls := strings.ToLower(strings.TrimSpace(s))
	if ls == "" {
		return false
	}
	for _, f := range skipFragments {
		if strings.Contains(ls, f) {
			return true
		}
	}
	return false
}
