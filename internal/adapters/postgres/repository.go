package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// Repository implements ports.TickerRepository on PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the Postgres repository.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	Logger       ports.Logger
}

// NewRepository opens a pooled connection, verifies it and ensures the schema.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Postgres repository")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required: %w", ports.ErrConfigurationError)
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w: %w", ports.ErrStore, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		err = fmt.Errorf("failed to ping postgres: %w: %w", ports.ErrStore, err)
		cfg.Logger.Error(ctx, err, "Postgres repository initialization failed")
		return nil, err
	}

	r := &Repository{db: db, logger: cfg.Logger}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		err = fmt.Errorf("failed to initialize postgres schema: %w", err)
		cfg.Logger.Error(ctx, err, "Postgres repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(ctx, "Postgres ticker store ready", map[string]interface{}{"maxOpenConns": cfg.MaxOpenConns})
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS ticker_data (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL,
  ts TIMESTAMPTZ NOT NULL,
  price NUMERIC NOT NULL CHECK (price > 0),
  open NUMERIC NULL,
  high NUMERIC NULL,
  low NUMERIC NULL,
  volume BIGINT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticker_data_symbol_ts ON ticker_data(symbol, ts);
`)
	return err
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.logger.Info(context.Background(), "Closing Postgres connection pool")
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w: %w", ports.ErrStore, err)
	}
	return nil
}

// Decimal parameters travel as text and are cast server-side so no precision
// is lost in driver encoding.
const insertQuery = `
INSERT INTO ticker_data (symbol, ts, price, open, high, low, volume)
VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7)
RETURNING id`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertRecord(ctx context.Context, q queryRower, rec *domain.TickerRecord) (int64, error) {
	var open, high, low sql.NullString
	var volume sql.NullInt64
	if c := rec.Candle; c != nil {
		open = sql.NullString{String: c.Open.String(), Valid: true}
		high = sql.NullString{String: c.High.String(), Valid: true}
		low = sql.NullString{String: c.Low.String(), Valid: true}
		volume = sql.NullInt64{Int64: c.Volume, Valid: true}
	}
	var id int64
	err := q.QueryRowContext(ctx, insertQuery,
		domain.NormalizeSymbol(rec.Symbol), rec.Timestamp.UTC(), rec.Price.String(), open, high, low, volume).Scan(&id)
	return id, err
}

// Insert validates and stores a single ticker record.
func (r *Repository) Insert(ctx context.Context, rec *domain.TickerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	id, err := insertRecord(ctx, r.db, rec)
	if err != nil {
		return fmt.Errorf("failed to insert ticker for symbol %s: %w: %w", rec.Symbol, ports.ErrStore, err)
	}
	rec.ID = id
	r.logger.Debug(ctx, "Ticker record stored", map[string]interface{}{"id": id, "symbol": rec.Symbol})
	return nil
}

// InsertBatch stores all records in one transaction.
func (r *Repository) InsertBatch(ctx context.Context, recs []*domain.TickerRecord) (int, error) {
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch insert: %w: %w", ports.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(recs))
	for i, rec := range recs {
		id, err := insertRecord(ctx, tx, rec)
		if err != nil {
			return 0, fmt.Errorf("failed to insert batch record %d (%s): %w: %w", i, rec.Symbol, ports.ErrStore, err)
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch insert: %w: %w", ports.ErrStore, err)
	}
	for i, rec := range recs {
		rec.ID = ids[i]
	}
	return len(recs), nil
}

const selectColumns = `id, symbol, ts, price::text, open::text, high::text, low::text, volume`

// FetchHistory returns records for symbol ascending by timestamp.
func (r *Repository) FetchHistory(ctx context.Context, symbol string, limit int) ([]*domain.TickerRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+selectColumns+` FROM (
  SELECT * FROM ticker_data WHERE symbol = $1 ORDER BY ts DESC, id DESC LIMIT $2
) AS recent
ORDER BY ts ASC, id ASC`, symbol, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+selectColumns+` FROM ticker_data WHERE symbol = $1 ORDER BY ts ASC, id ASC`, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history for symbol %s: %w: %w", symbol, ports.ErrStore, err)
	}
	defer rows.Close()

	records := make([]*domain.TickerRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticker row for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticker rows: %w: %w", ports.ErrStore, err)
	}
	return records, nil
}

// ListSymbols returns the distinct stored symbols.
func (r *Repository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM ticker_data ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w: %w", ports.ErrStore, err)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w: %w", ports.ErrQueryFailed, err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol rows: %w: %w", ports.ErrStore, err)
	}
	return symbols, nil
}

func scanRecord(rows *sql.Rows) (*domain.TickerRecord, error) {
	rec := &domain.TickerRecord{}
	var (
		price           string
		open, high, low decimal.NullDecimal
		volume          sql.NullInt64
	)
	if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Timestamp, &price, &open, &high, &low, &volume); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	rec.Price = p
	rec.Timestamp = rec.Timestamp.UTC()
	if open.Valid && high.Valid && low.Valid {
		rec.Candle = &domain.Candle{Open: open.Decimal, High: high.Decimal, Low: low.Decimal, Volume: volume.Int64}
	}
	return rec, nil
}
