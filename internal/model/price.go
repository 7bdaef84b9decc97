// Package model defines the domain types shared across the ingestion pipeline.
package model

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date format used throughout the pipeline.
// A record's date is the nominal date of the priced snapshot, not the
// scrape timestamp.
const DateLayout = "2006-01-02"

// PriceRecord is the canonical unit of market price data. Every extraction
// stage's output is projected into this shape before persistence.
type PriceRecord struct {
	CropName      string   `json:"crop_name"`
	Category      string   `json:"category"`
	Region        string   `json:"region"`
	Price         *float64 `json:"price"` // nil means "not available", never zero
	Unit          string   `json:"unit"`
	Specification string   `json:"specification"`
	Source        string   `json:"source"` // provenance tag (authority/tool)
	Date          string   `json:"date"`   // YYYY-MM-DD
}

// Key returns the composite identity used for in-run deduplication.
// The match is exact and case-sensitive; price is deliberately excluded
// so conflicting prices for the same commodity collapse to first-seen.
func (r PriceRecord) Key() string {
	return strings.Join([]string{
		r.CropName, r.Category, r.Region, r.Date, r.Specification, r.Unit,
	}, "\x1f")
}

// PrevDate returns the calendar day before the record's date, or "" if the
// date does not parse.
func (r PriceRecord) PrevDate() string {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// TriggerType is the condition class governing whether a subscription fires.
type TriggerType string

const (
	TriggerAbove   TriggerType = "above"
	TriggerBelow   TriggerType = "below"
	TriggerChanged TriggerType = "changed"
)

// AlertSubscription is a user-defined price alert. Subscriptions are created
// and deleted by user action in the marketplace app; the alert engine only
// reads them.
type AlertSubscription struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"user_id"`
	CropName      string      `json:"crop_name"`
	Region        string      `json:"region,omitempty"`        // "" matches any region
	Specification string      `json:"specification,omitempty"` // "" matches any specification
	Threshold     float64     `json:"threshold"`
	Trigger       TriggerType `json:"trigger"`
}

// PriceChange is a detected day-over-day price movement for one commodity key.
type PriceChange struct {
	Record    PriceRecord `json:"record"`
	OldPrice  float64     `json:"old_price"`
	NewPrice  float64     `json:"new_price"`
	Increased bool        `json:"increased"`
}

// RunStatus is the terminal state of one region's ingestion run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunNoData  RunStatus = "no_data" // expected absence, not a failure
	RunFailed  RunStatus = "failed"
)

// IngestRun is one row of the ingestion audit log.
type IngestRun struct {
	ID         string     `json:"id"`
	Region     string     `json:"region"`
	Status     RunStatus  `json:"status"`
	Records    int        `json:"records"`
	Alerts     int        `json:"alerts"`
	Note       string     `json:"note,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
