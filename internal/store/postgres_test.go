package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/pricewatch/internal/model"
)

// newMockStore creates a PostgresStore backed by pgxmock.
func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func priceRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"crop_name", "category", "region", "price", "unit", "specification", "source", "price_date",
	})
}

func TestInsertPrices_UsesCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"price_records"},
		[]string{"crop_name", "category", "region", "price", "unit", "specification", "source", "price_date"}).
		WillReturnResult(1)

	price := 45.0
	n, err := s.InsertPrices(context.Background(), []model.PriceRecord{{
		CropName: "Rice", Category: "Cereal", Region: "NCR",
		Price: &price, Unit: "P/kg", Source: "tabula", Date: "2026-08-28",
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestPriceOn_Found(t *testing.T) {
	s, mock := newMockStore(t)

	price := 45.0
	mock.ExpectQuery(`SELECT .+ FROM price_records\s+WHERE price_date = \$1 AND region = \$2`).
		WithArgs("2026-08-27", "NCR", "Rice%", "Local%").
		WillReturnRows(priceRows().AddRow(
			"Rice", "Cereal", "NCR", &price, "P/kg", "Local", "tabula",
			time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		))

	rec, err := s.LatestPriceOn(context.Background(), "2026-08-27", "NCR", "Rice", "Local")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2026-08-27", rec.Date)
	require.NotNil(t, rec.Price)
	assert.InDelta(t, 45.0, *rec.Price, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestPriceOn_NotFoundIsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM price_records`).
		WithArgs("2026-08-27", "NCR", "Garlic%", "%").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.LatestPriceOn(context.Background(), "2026-08-27", "NCR", "Garlic", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestPriceBetween(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM price_records\s+WHERE crop_name ILIKE \$1`).
		WithArgs("Garlic%", "%", "2026-03-01", "2026-08-28").
		WillReturnRows(priceRows().AddRow(
			"Garlic", "Spices", "CAR", (*float64)(nil), "P/kg", "", "llm",
			time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		))

	rec, err := s.LatestPriceBetween(context.Background(), "Garlic", "", "2026-03-01", "2026-08-28")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, rec.Price)
	assert.Equal(t, "2026-05-02", rec.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubscriptions(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, user_id, crop_name, region, specification, threshold, trigger_type`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "crop_name", "region", "specification", "threshold", "trigger_type",
		}).AddRow(int64(1), "u1", "Rice", "", "", 48.0, model.TriggerAbove))

	subs, err := s.ListSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, model.TriggerAbove, subs[0].Trigger)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSubscription(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO alert_subscriptions`).
		WithArgs("u1", "Rice", "NCR", "Well Milled", 48.0, "above").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.AddSubscription(context.Background(), model.AlertSubscription{
		UserID: "u1", CropName: "Rice", Region: "NCR",
		Specification: "Well Milled", Threshold: 48.0, Trigger: model.TriggerAbove,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPhone_MissingIsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT phone FROM user_contacts`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	phone, err := s.UserPhone(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartAndFinishRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "NCR", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE ingest_runs SET status`).
		WithArgs("ok", 42, 3, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, err := s.StartRun(context.Background(), "NCR")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, s.FinishRun(context.Background(), id, model.RunOK, 42, 3, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS price_records`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
