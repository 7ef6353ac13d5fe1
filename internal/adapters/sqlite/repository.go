package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const memoryDSN = ":memory:"

// Repository implements ports.TickerRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := strings.TrimPrefix(cfg.DBPath, "sqlite://")
	if dbPath == "" {
		dbPath = "./data/tickers.db" // Default path
	}

	dsn := memoryDSN
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrStore, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrStore, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates the ticker table if it doesn't exist.
// Timestamps are stored as UTC unix nanoseconds and prices as decimal text
// so both round-trip exactly.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ticker_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		ts INTEGER NOT NULL,
		price TEXT NOT NULL,
		open TEXT NULL,
		high TEXT NULL,
		low TEXT NULL,
		volume INTEGER NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ticker_data_symbol_ts ON ticker_data (symbol, ts);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w: %w", ports.ErrStore, err)
	}
	return nil
}

const insertQuery = `
	INSERT INTO ticker_data (symbol, ts, price, open, high, low, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertRecord(ctx context.Context, ex execer, rec *domain.TickerRecord) (int64, error) {
	open, high, low, volume := candleArgs(rec.Candle)
	result, err := ex.ExecContext(ctx, insertQuery,
		domain.NormalizeSymbol(rec.Symbol), rec.Timestamp.UTC().UnixNano(), rec.Price.String(), open, high, low, volume)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
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
	r.logger.Debug(ctx, "Ticker record stored", map[string]interface{}{"id": id, "symbol": rec.Symbol, "price": rec.Price.String()})
	return nil
}

// InsertBatch stores all records in a single transaction.
func (r *Repository) InsertBatch(ctx context.Context, recs []*domain.TickerRecord) (int, error) {
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch insert: %w: %w", ports.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

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
	r.logger.Debug(ctx, "Ticker batch stored", map[string]interface{}{"count": len(recs)})
	return len(recs), nil
}

// FetchHistory returns records for symbol ascending by timestamp, optionally
// capped to the most recent limit records.
func (r *Repository) FetchHistory(ctx context.Context, symbol string, limit int) ([]*domain.TickerRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		const query = `
		SELECT id, symbol, ts, price, open, high, low, volume FROM (
			SELECT id, symbol, ts, price, open, high, low, volume
			FROM ticker_data
			WHERE symbol = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		) ORDER BY ts ASC, id ASC`
		rows, err = r.db.QueryContext(ctx, query, symbol, limit)
	} else {
		const query = `
		SELECT id, symbol, ts, price, open, high, low, volume
		FROM ticker_data
		WHERE symbol = ?
		ORDER BY ts ASC, id ASC`
		rows, err = r.db.QueryContext(ctx, query, symbol)
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
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticker rows: %w: %w", ports.ErrStore, err)
	}
	return records, nil
}

// ListSymbols returns the distinct symbols stored.
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
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol rows: %w: %w", ports.ErrStore, err)
	}
	return symbols, nil
}

// --- Helper Functions ---

func candleArgs(c *domain.Candle) (open, high, low sql.NullString, volume sql.NullInt64) {
	if c == nil {
		return
	}
	open = sql.NullString{String: c.Open.String(), Valid: true}
	high = sql.NullString{String: c.High.String(), Valid: true}
	low = sql.NullString{String: c.Low.String(), Valid: true}
	volume = sql.NullInt64{Int64: c.Volume, Valid: true}
	return
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a domain.TickerRecord.
func scanRecord(s scanner) (*domain.TickerRecord, error) {
	rec := &domain.TickerRecord{}
	var (
		tsNanos         int64
		price           string
		open, high, low decimal.NullDecimal
		volume          sql.NullInt64
	)
	if err := s.Scan(&rec.ID, &rec.Symbol, &tsNanos, &price, &open, &high, &low, &volume); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	rec.Price = p
	rec.Timestamp = time.Unix(0, tsNanos).UTC()
	if open.Valid && high.Valid && low.Valid {
		rec.Candle = &domain.Candle{Open: open.Decimal, High: high.Decimal, Low: low.Decimal, Volume: volume.Int64}
	}
	return rec, nil
}
