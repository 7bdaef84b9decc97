package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/agrilink/pricewatch/internal/db"
	"github.com/agrilink/pricewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const priceColumns = `crop_name, category, region, price, unit, specification, source, price_date`

// preparedStatements lists the hot queries prepared on each new connection.
// The alert engine issues the two baseline lookups once per commodity key
// per run.
var preparedStatements = map[string]string{
	"latest_price_on": `SELECT ` + priceColumns + ` FROM price_records
		WHERE price_date = $1 AND region = $2 AND crop_name ILIKE $3 AND specification ILIKE $4
		ORDER BY id DESC LIMIT 1`,
	"latest_price_between": `SELECT ` + priceColumns + ` FROM price_records
		WHERE crop_name ILIKE $1 AND specification ILIKE $2 AND price_date >= $3 AND price_date < $4
		ORDER BY price_date DESC, id DESC LIMIT 1`,
	"user_phone": `SELECT phone FROM user_contacts WHERE user_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price_records (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	crop_name     TEXT NOT NULL,
	category      TEXT NOT NULL,
	region        TEXT NOT NULL,
	price         DOUBLE PRECISION,
	unit          TEXT NOT NULL,
	specification TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	price_date    DATE NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_price_records_crop_date ON price_records(crop_name, price_date DESC);
CREATE INDEX IF NOT EXISTS idx_price_records_region_date ON price_records(region, price_date);

CREATE TABLE IF NOT EXISTS alert_subscriptions (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	user_id       TEXT NOT NULL,
	crop_name     TEXT NOT NULL,
	region        TEXT NOT NULL DEFAULT '',
	specification TEXT NOT NULL DEFAULT '',
	threshold     DOUBLE PRECISION NOT NULL,
	trigger_type  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alert_subscriptions_user ON alert_subscriptions(user_id);

CREATE TABLE IF NOT EXISTS user_contacts (
	user_id TEXT PRIMARY KEY,
	phone   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	region      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	records     INT NOT NULL DEFAULT 0,
	alerts      INT NOT NULL DEFAULT 0,
	note        TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at DESC);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertPrices appends a batch via the COPY protocol. Repeated ingestion of
// the same date inserts new rows by design; history is never overwritten.
func (s *PostgresStore) InsertPrices(ctx context.Context, records []model.PriceRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.CropName, r.Category, r.Region, r.Price, r.Unit,
			r.Specification, r.Source, r.Date,
		}
	}

	n, err := db.CopyFrom(ctx, s.pool, "price_records",
		[]string{"crop_name", "category", "region", "price", "unit", "specification", "source", "price_date"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert prices")
	}
	return n, nil
}

func scanPrice(row pgx.Row) (*model.PriceRecord, error) {
	var (
		rec  model.PriceRecord
		date time.Time
	)
	err := row.Scan(&rec.CropName, &rec.Category, &rec.Region, &rec.Price,
		&rec.Unit, &rec.Specification, &rec.Source, &date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Date = date.Format(model.DateLayout)
	return &rec, nil
}

// LatestPriceOn implements Store. Crop and specification use prefix
// matching; a non-match returns (nil, nil).
func (s *PostgresStore) LatestPriceOn(ctx context.Context, date, region, cropName, specification string) (*model.PriceRecord, error) {
	rec, err := scanPrice(s.pool.QueryRow(ctx, preparedStatements["latest_price_on"],
		date, region, cropName+"%", specification+"%"))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest price on date")
	}
	return rec, nil
}

// LatestPriceBetween implements Store. Ordering by (price_date, id)
// descending makes the tie-break between same-date rows deterministic.
func (s *PostgresStore) LatestPriceBetween(ctx context.Context, cropName, specification, since, before string) (*model.PriceRecord, error) {
	rec, err := scanPrice(s.pool.QueryRow(ctx, preparedStatements["latest_price_between"],
		cropName+"%", specification+"%", since, before))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest price in window")
	}
	return rec, nil
}

// RecentPrices implements Store.
func (s *PostgresStore) RecentPrices(ctx context.Context, cropName string, n int) ([]model.PriceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceColumns+` FROM price_records
		WHERE crop_name ILIKE $1 ORDER BY price_date DESC, id DESC LIMIT $2`,
		cropName+"%", n)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent prices")
	}
	defer rows.Close()

	var out []model.PriceRecord
	for rows.Next() {
		var (
			rec  model.PriceRecord
			date time.Time
		)
		if err := rows.Scan(&rec.CropName, &rec.Category, &rec.Region, &rec.Price,
			&rec.Unit, &rec.Specification, &rec.Source, &date); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recent price")
		}
		rec.Date = date.Format(model.DateLayout)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSubscriptions implements Store.
func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]model.AlertSubscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, crop_name, region, specification, threshold, trigger_type
		FROM alert_subscriptions ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subscriptions")
	}
	defer rows.Close()

	var out []model.AlertSubscription
	for rows.Next() {
		var sub model.AlertSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.CropName, &sub.Region,
			&sub.Specification, &sub.Threshold, &sub.Trigger); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscription")
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// AddSubscription implements Store.
func (s *PostgresStore) AddSubscription(ctx context.Context, sub model.AlertSubscription) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alert_subscriptions (user_id, crop_name, region, specification, threshold, trigger_type)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sub.UserID, sub.CropName, sub.Region, sub.Specification, sub.Threshold, string(sub.Trigger),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: add subscription")
	}
	return id, nil
}

// RemoveSubscription implements Store.
func (s *PostgresStore) RemoveSubscription(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM alert_subscriptions WHERE id = $1`, id); err != nil {
		return eris.Wrap(err, "postgres: remove subscription")
	}
	return nil
}

// UserPhone implements Store. A missing contact row returns "" so the alert
// engine can skip the user without treating it as a failure.
func (s *PostgresStore) UserPhone(ctx context.Context, userID string) (string, error) {
	var phone string
	err := s.pool.QueryRow(ctx, preparedStatements["user_phone"], userID).Scan(&phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: user phone")
	}
	return phone, nil
}

// StartRun implements Store.
func (s *PostgresStore) StartRun(ctx context.Context, region string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, region, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, region, string(model.RunRunning), time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

// FinishRun implements Store.
func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, records, alerts int, note string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, records = $2, alerts = $3, note = $4, finished_at = $5 WHERE id = $6`,
		string(status), records, alerts, note, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrap(err, "postgres: finish run")
	}
	return nil
}

// RecentRuns implements Store.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, region, status, records, alerts, note, started_at, finished_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent runs")
	}
	defer rows.Close()

	var out []model.IngestRun
	for rows.Next() {
		var run model.IngestRun
		if err := rows.Scan(&run.ID, &run.Region, &run.Status, &run.Records,
			&run.Alerts, &run.Note, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
