package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// writeCandles writes closes as a CSV with a fixed 2.0 high-low range
func writeCandles(t *testing.T, closes []float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,1000\n",
			base.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), c, c+1, c-1, c)
	}
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func flat(count int, price float64) []float64 {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

func testConfig(params risk.RiskParameters) *config.Config {
	cfg := &config.Config{Environment: "test", LogLevel: "error"}
	cfg.Risk.Preset = risk.PresetModerate
	cfg.Risk.Params = params
	return cfg
}

func testOptions(candles string) options {
	return options{
		candles:  candles,
		symbol:   "BTCUSDT",
		side:     "long",
		balance:  10000,
		leverage: 1,
		window:   30,
	}
}

func TestRun_AssessmentOnly(t *testing.T) {
	opts := testOptions(writeCandles(t, flat(40, 100)))
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), testConfig(risk.Moderate()), opts, zap.NewNop(), &out))

	output := out.String()
	assert.Contains(t, output, "TRADE ASSESSMENT")
	assert.Contains(t, output, "APPROVED")
	assert.Contains(t, output, "98.0000")
	assert.Contains(t, output, "104.0000")
	assert.Contains(t, output, "PORTFOLIO RISK")
	assert.NotContains(t, output, "REPLAY")
}

func TestRun_ReplayHitsTarget(t *testing.T) {
	closes := append(flat(30, 100), 101, 102, 103, 104, 105)
	opts := testOptions(writeCandles(t, closes))
	opts.replay = true
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), testConfig(risk.Moderate()), opts, zap.NewNop(), &out))

	output := out.String()
	assert.Contains(t, output, "take profit")
	// 5 units x 4.0
	assert.Contains(t, output, "$20.00")
}

func TestRun_BlockedTradeIsNotReplayed(t *testing.T) {
	opts := testOptions(writeCandles(t, flat(40, 100)))
	opts.replay = true
	opts.leverage = 10
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), testConfig(risk.Moderate()), opts, zap.NewNop(), &out))

	output := out.String()
	assert.Contains(t, output, "BLOCKED")
	assert.Contains(t, output, "Leverage 10.0x exceeds")
	assert.NotContains(t, output, "REPLAY")
}

func TestRun_Errors(t *testing.T) {
	cfg := testConfig(risk.Moderate())

	opts := testOptions(writeCandles(t, flat(40, 100)))
	opts.side = "sideways"
	assert.Error(t, run(context.Background(), cfg, opts, zap.NewNop(), &bytes.Buffer{}))

	opts = testOptions(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, run(context.Background(), cfg, opts, zap.NewNop(), &bytes.Buffer{}))
}

func TestReplay_StopLoss(t *testing.T) {
	engine, err := risk.NewEngine(risk.Moderate())
	require.NoError(t, err)

	req := risk.AssessmentRequest{
		Instrument: "BTCUSDT", EntryPrice: 100, Size: 5, Direction: risk.Long,
		AccountBalance: 10000, Leverage: 1,
	}
	assessment, err := engine.Assess(req)
	require.NoError(t, err)

	ticks := []types.OHLCV{{Close: 99}, {Close: 97.5}, {Close: 90}}
	result, err := replay(engine, req, assessment, ticks)
	require.NoError(t, err)

	assert.Equal(t, "stop loss", result.ExitReason)
	assert.Equal(t, 2, result.Ticks)
	assert.InDelta(t, -12.5, result.RealizedPnL, 1e-9)
	assert.InDelta(t, 9987.5, result.Balance, 1e-9)
	assert.Empty(t, engine.Positions())
}

func TestReplay_ShortTrailingStop(t *testing.T) {
	params := risk.Moderate()
	params.UseTrailingStop = true
	params.TrailingStopPct = 1
	engine, err := risk.NewEngine(params)
	require.NoError(t, err)

	req := risk.AssessmentRequest{
		Instrument: "ETHUSDT", EntryPrice: 100, Size: 5, Direction: risk.Short,
		AccountBalance: 10000, Leverage: 1,
	}
	assessment, err := engine.Assess(req)
	require.NoError(t, err)

	ticks := []types.OHLCV{{Close: 99}, {Close: 98}, {Close: 98.99}}
	result, err := replay(engine, req, assessment, ticks)
	require.NoError(t, err)

	assert.Equal(t, 2, result.StopMoves)
	assert.Equal(t, "stop loss", result.ExitReason)
	assert.InDelta(t, (100-98.99)*5, result.RealizedPnL, 1e-9)
}

func TestSplitWindow(t *testing.T) {
	candles := make([]types.OHLCV, 10)

	window, ticks := splitWindow(candles, 4)
	assert.Len(t, window, 4)
	assert.Len(t, ticks, 6)

	window, ticks = splitWindow(candles, 0)
	assert.Len(t, window, 10)
	assert.Empty(t, ticks)

	window, ticks = splitWindow(candles, 50)
	assert.Len(t, window, 10)
	assert.Empty(t, ticks)
}

func TestLoadCandles_Filters(t *testing.T) {
	opts := testOptions(writeCandles(t, flat(48, 100)))

	opts.lookback = 5 * time.Hour
	candles, err := loadCandles(opts, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, candles, 6)

	opts.lookback = 0
	opts.from = "2024-01-02"
	candles, err = loadCandles(opts, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, candles, 24)

	opts.from = ""
	opts.to = "2024-01-01"
	candles, err = loadCandles(opts, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, candles, 24)

	opts.to = "2023-12-31"
	_, err = loadCandles(opts, zap.NewNop())
	assert.Error(t, err)

	opts.to = "yesterday"
	_, err = loadCandles(opts, zap.NewNop())
	assert.Error(t, err)
}

func TestRun_OmittedSizeAssessesOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opts := testOptions(writeCandles(t, flat(40, 100)))
	opts.leverage = 10

	require.NoError(t, run(context.Background(), testConfig(risk.Moderate()), opts, zap.New(core), &bytes.Buffer{}))

	blocked := logs.FilterMessage("Trade blocked").All()
	require.Len(t, blocked, 1)
	assert.Equal(t, 5.0, blocked[0].ContextMap()["requested_size"])
}

func TestDefaultSize(t *testing.T) {
	req := risk.AssessmentRequest{
		Instrument: "BTCUSDT", EntryPrice: 100, Direction: risk.Long,
		AccountBalance: 10000, Leverage: 1,
	}

	size, err := defaultSize(risk.Moderate(), req)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, size, 1e-9)

	params := risk.Moderate()
	params.UseATRStops = true
	_, err = defaultSize(params, req)
	assert.Error(t, err)
}

func TestRun_RejectsInvalidCorrelationMatrix(t *testing.T) {
	cfg := testConfig(risk.Moderate())
	cfg.Risk.Matrix = risk.CorrelationMatrix{"BTCUSDT": {"ETHUSDT": 1.5}}

	err := run(context.Background(), cfg, testOptions(writeCandles(t, flat(40, 100))), zap.NewNop(), &bytes.Buffer{})
	assert.Error(t, err)
}
