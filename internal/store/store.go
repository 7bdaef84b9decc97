// Package store persists price records, alert subscriptions, user contacts
// and the ingestion audit log.
package store

import (
	"context"

	"github.com/agrilink/pricewatch/internal/model"
)

// Store defines the persistence interface for the ingestion pipeline.
//
// The price table is append-only: rows are inserted, never updated, so
// re-ingesting a date accumulates rows and readers resolve ties by
// insertion order (newest id wins).
type Store interface {
	// Prices
	InsertPrices(ctx context.Context, records []model.PriceRecord) (int64, error)
	// LatestPriceOn finds the newest record for an exact date and region,
	// with prefix matching on crop name and specification.
	LatestPriceOn(ctx context.Context, date, region, cropName, specification string) (*model.PriceRecord, error)
	// LatestPriceBetween finds the newest record for a crop/specification
	// across all regions with since <= date < before, ties broken by
	// insertion order.
	LatestPriceBetween(ctx context.Context, cropName, specification, since, before string) (*model.PriceRecord, error)
	// RecentPrices returns the newest n records for a crop, newest first.
	RecentPrices(ctx context.Context, cropName string, n int) ([]model.PriceRecord, error)

	// Subscriptions and contacts
	ListSubscriptions(ctx context.Context) ([]model.AlertSubscription, error)
	AddSubscription(ctx context.Context, sub model.AlertSubscription) (int64, error)
	RemoveSubscription(ctx context.Context, id int64) error
	// UserPhone returns "" (not an error) when the user has no contact row.
	UserPhone(ctx context.Context, userID string) (string, error)

	// Ingestion audit log
	StartRun(ctx context.Context, region string) (string, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, records, alerts int, note string) error
	RecentRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
