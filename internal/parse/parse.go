// Package parse holds pure text and number normalization helpers used by
// every extraction stage. All functions are total: bad input yields a zero
// value, never an error.
package parse

import (
	"strconv"
	"strings"
)

// notAvailableTokens are the placeholder strings the source uses for a
// missing price. Comparison is case-insensitive.
var notAvailableTokens = map[string]struct{}{
	"n/a":     {},
	"$n/a":    {},
	"#n/a":    {},
	"#div/0!": {},
	"na":      {},
	"-":       {},
	"":        {},
}

// unitTable maps substring keywords to canonical unit strings. Order is a
// deliberate priority: the first match wins, so more specific fragments
// must come before fragments they contain.
var unitTable = []struct {
	keyword string
	unit    string
}{
	{"/kg", "P/kg"},
	{"/gallon", "P/gallon"},
	{"/bottle", "P/bottle"},
	{"/pc", "P/pc"},
	{"/pack", "P/pack"},
	{"/tray", "P/tray"},
	{"/dozen", "P/dozen"},
	{"/bundle", "P/bundle"},
	{"/head", "P/head"},
	{"per kg", "P/kg"},
	{"per piece", "P/pc"},
}

// DefaultUnit is used when no unit keyword is recognized.
const DefaultUnit = "P/unit"

// CleanText collapses runs of whitespace to a single space and trims.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParsePrice parses a price string, tolerating thousands separators and a
// leading currency sign. All recognized "not available" placeholders and
// anything that fails numeric parsing return nil.
func ParsePrice(s string) *float64 {
	cleaned := strings.ToLower(CleanText(s))
	if _, ok := notAvailableTokens[cleaned]; ok {
		return nil
	}

	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "php")
	cleaned = strings.TrimPrefix(cleaned, "p")
	cleaned = strings.TrimPrefix(cleaned, "₱")
	cleaned = strings.TrimSpace(cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractUnit keyword-matches text against the unit table, first match wins.
// Falls back to DefaultUnit when nothing is recognized.
func ExtractUnit(text string) string {
	lowered := strings.ToLower(text)
	for _, entry := range unitTable {
		if strings.Contains(lowered, entry.keyword) {
			return entry.unit
		}
	}
	return DefaultUnit
}
