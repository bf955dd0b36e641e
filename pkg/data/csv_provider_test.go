package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

const sampleCSV = `timestamp,open,high,low,close,volume
2024-01-01 00:00:00,100,102,99,101,1500
2024-01-01 01:00:00,101,103,100,102.5,1200
2024-01-01 02:00:00,102.5,104,101,103,900
`

func TestCSVProvider_LoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	data, err := NewCSVProvider(nil).LoadData(path)
	require.NoError(t, err)
	require.Len(t, data, 3)

	assert.Equal(t, types.OHLCV{
		Open: 100, High: 102, Low: 99, Close: 101, Volume: 1500,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, data[0])
	assert.Equal(t, 103.0, data[2].Close)
}

func TestCSVProvider_MissingFile(t *testing.T) {
	_, err := NewCSVProvider(nil).LoadData(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVProvider_SkipsMalformedRows(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	provider := NewCSVProvider(zap.New(core))

	input := sampleCSV +
		"not-a-date,1,2,0.5,1,10\n" +
		"2024-01-01 03:00:00,abc,2,0.5,1,10\n" +
		"2024-01-01 04:00:00,100,99,98,100,10\n" +
		"2024-01-01 05:00:00,100,101\n"

	data, err := provider.Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, data, 3)
	assert.Equal(t, 4, logs.FilterMessage("Skipping CSV row").Len())
}

func TestCSVProvider_UnixMillis(t *testing.T) {
	input := "start,open,high,low,close,volume\n1704067200000,100,102,99,101,1500\n"

	data, err := NewCSVProviderWithFormat(UnixMillisCSVFormat, nil).Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), data[0].Timestamp)
}

func TestCSVProvider_NoData(t *testing.T) {
	provider := NewCSVProvider(nil)

	_, err := provider.Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoData)

	_, err = provider.Read(strings.NewReader("timestamp,open,high,low,close,volume\n"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCSVProvider_ValidateData(t *testing.T) {
	provider := NewCSVProvider(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	good := types.OHLCV{Open: 100, High: 101, Low: 99, Close: 100, Timestamp: base}

	assert.NoError(t, provider.ValidateData([]types.OHLCV{good}))
	assert.ErrorIs(t, provider.ValidateData(nil), ErrNoData)

	earlier := good
	earlier.Timestamp = base.Add(-time.Hour)
	assert.Error(t, provider.ValidateData([]types.OHLCV{good, earlier}))

	inverted := good
	inverted.High = 98
	assert.Error(t, provider.ValidateData([]types.OHLCV{inverted}))
}
