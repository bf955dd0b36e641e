package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// ErrNoData is returned when a source yields no usable candles
var ErrNoData = errors.New("no candle data")

// CSVProvider loads candles from CSV files
type CSVProvider struct {
	format CSVColumnMapping
	logger *zap.Logger
}

var _ CandleLoader = (*CSVProvider)(nil)

// NewCSVProvider creates a CSV provider with the default format
func NewCSVProvider(logger *zap.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, logger)
}

// NewCSVProviderWithFormat creates a CSV provider with a custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, logger *zap.Logger) *CSVProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVProvider{format: format, logger: logger}
}

// LoadData loads candles from a CSV file and validates them
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer file.Close()

	data, err := p.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := p.ValidateData(data); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	p.logger.Debug("Loaded candles", zap.String("source", source), zap.Int("count", len(data)))
	return data, nil
}

// Read parses candles from r. Malformed rows are skipped and logged.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	lineNum := 0
	if p.format.HasHeader {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoData
			}
			return nil, fmt.Errorf("read CSV header: %w", err)
		}
		lineNum++
	}

	var data []types.OHLCV
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("read CSV at line %d: %w", lineNum, err)
		}

		candle, err := p.parseRecord(record)
		if err != nil {
			p.logger.Warn("Skipping CSV row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		data = append(data, candle)
	}

	if len(data) == 0 {
		return nil, ErrNoData
	}
	return data, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.OHLCV, error) {
	format := p.format
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("expected %d columns, got %d", format.MinColumns, len(record))
	}

	timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	var values [5]float64
	cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i, col := range cols {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("invalid %s %q", names[i], record[col])
		}
	}

	candle := types.OHLCV{
		Timestamp: timestamp,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	if err := validateCandle(candle); err != nil {
		return types.OHLCV{}, err
	}
	return candle, nil
}

func parseTimestamp(value, layout string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if layout == "" {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix millisecond timestamp %q", value)
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	return t, nil
}

func validateCandle(c types.OHLCV) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low || c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high %.4f below other prices", c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low %.4f above other prices", c.Low)
	}
	return nil
}

// ValidateData checks prices and the chronological order of data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return ErrNoData
	}

	for i, candle := range data {
		if err := validateCandle(candle); err != nil {
			return fmt.Errorf("invalid candle at index %d: %w", i, err)
		}
		if i > 0 && candle.Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be in chronological order", i)
		}
	}
	return nil
}
