package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
)

// tickerCSVHeader is the column layout written by WriteTickersToCSV and
// accepted by ReadTickersFromCSV.
var tickerCSVHeader = []string{"datetime", "symbol", "open", "high", "low", "close", "volume"}

// WriteTickersToCSV writes records with a header row. Candle columns are left
// empty for records without OHLCV detail.
func WriteTickersToCSV(w io.Writer, records []*domain.TickerRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tickerCSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		open, high, low, volume := "", "", "", ""
		if c := r.Candle; c != nil {
			open, high, low = c.Open.String(), c.High.String(), c.Low.String()
			volume = strconv.FormatInt(c.Volume, 10)
		}
		if err := writer.Write([]string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Symbol,
			open,
			high,
			low,
			r.Price.String(),
			volume,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// column aliases, first match wins
var csvColumns = map[string][]string{
	"datetime": {"datetime", "timestamp", "date", "time"},
	"symbol":   {"symbol", "ticker"},
	"open":     {"open"},
	"high":     {"high"},
	"low":      {"low"},
	"close":    {"close", "price"},
	"volume":   {"volume"},
}

// ReadTickersFromCSV parses a header-led CSV of ticker observations. The
// datetime and close (or price) columns are required; open, high, low and
// volume are read as a candle when all four are present on a row. Rows
// without a symbol column use defaultSymbol. Any invalid row fails the whole
// read with domain.ErrValidation and the offending line number.
func ReadTickersFromCSV(r io.Reader, defaultSymbol string) ([]*domain.TickerRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: csv is empty", domain.ErrValidation)
		}
		return nil, fmt.Errorf("%w: failed to read csv header: %v", domain.ErrValidation, err)
	}

	idx := indexColumns(header)
	if _, ok := idx["datetime"]; !ok {
		return nil, fmt.Errorf("%w: csv header needs a datetime or timestamp column", domain.ErrValidation)
	}
	if _, ok := idx["close"]; !ok {
		return nil, fmt.Errorf("%w: csv header needs a close or price column", domain.ErrValidation)
	}
	if _, ok := idx["symbol"]; !ok && domain.NormalizeSymbol(defaultSymbol) == "" {
		return nil, fmt.Errorf("%w: csv has no symbol column and no symbol was given", domain.ErrValidation)
	}

	records := make([]*domain.TickerRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		if isBlank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		rec, err := parseRow(row, idx, defaultSymbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func indexColumns(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int)
	for field, aliases := range csvColumns {
		for _, alias := range aliases {
			if i, ok := positions[alias]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, idx map[string]int, defaultSymbol string) (*domain.TickerRecord, error) {
	symbol := field(row, idx, "symbol")
	if symbol == "" {
		symbol = defaultSymbol
	}

	ts, err := domain.ParseTimestamp(field(row, idx, "datetime"))
	if err != nil {
		return nil, err
	}
	price, err := parseDecimal("close", field(row, idx, "close"))
	if err != nil {
		return nil, err
	}

	var candle *domain.Candle
	open, high, low, vol := field(row, idx, "open"), field(row, idx, "high"), field(row, idx, "low"), field(row, idx, "volume")
	if open != "" && high != "" && low != "" && vol != "" {
		candle = &domain.Candle{}
		if candle.Open, err = parseDecimal("open", open); err != nil {
			return nil, err
		}
		if candle.High, err = parseDecimal("high", high); err != nil {
			return nil, err
		}
		if candle.Low, err = parseDecimal("low", low); err != nil {
			return nil, err
		}
		// Volumes exported by spreadsheets often carry a ".0" suffix.
		v, err := decimal.NewFromString(vol)
		if err != nil || !v.Equal(v.Truncate(0)) {
			return nil, fmt.Errorf("%w: volume must be an integer, got %q", domain.ErrValidation, vol)
		}
		candle.Volume = v.IntPart()
	}

	return domain.NewTickerRecord(symbol, ts, price, candle)
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid %s %q", domain.ErrValidation, name, value)
	}
	return d, nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
