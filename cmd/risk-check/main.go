package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/data"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

const dateLayout = "2006-01-02"

type options struct {
	envFile     string
	candles     string
	symbol      string
	side        string
	entry       float64
	size        float64
	balance     float64
	leverage    float64
	window      int
	lookback    time.Duration
	from        string
	to          string
	replay      bool
	metricsAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.envFile, "env", ".env", "Environment file path")
	flag.StringVar(&opts.candles, "candles", "", "CSV candle file (timestamp,open,high,low,close,volume)")
	flag.StringVar(&opts.symbol, "symbol", "BTCUSDT", "Instrument to assess")
	flag.StringVar(&opts.side, "side", "long", "Trade direction: long/buy or short/sell")
	flag.Float64Var(&opts.entry, "entry", 0, "Entry price (default: close of the last candle in the window)")
	flag.Float64Var(&opts.size, "size", 0, "Requested quantity (default: the recommended size)")
	flag.Float64Var(&opts.balance, "balance", 10000, "Account balance")
	flag.Float64Var(&opts.leverage, "leverage", 1, "Leverage for the trade")
	flag.IntVar(&opts.window, "window", 100, "Candles used for the assessment; with -replay the rest are replayed as ticks")
	flag.DurationVar(&opts.lookback, "lookback", 0, "Only use candles within this duration of the last candle")
	flag.StringVar(&opts.from, "from", "", "Drop candles before this date (YYYY-MM-DD)")
	flag.StringVar(&opts.to, "to", "", "Drop candles after this date (YYYY-MM-DD)")
	flag.BoolVar(&opts.replay, "replay", false, "Replay the candles after the window through the position tracker")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address (overrides METRICS_ADDR)")
	flag.Parse()

	if opts.candles == "" {
		log.Fatal("Please specify a candle file with -candles flag")
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.metricsAddr == "" {
		opts.metricsAddr = cfg.Monitoring.MetricsAddr
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, zl, os.Stdout); err != nil {
		zl.Fatal("Risk check failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, zl *zap.Logger, out io.Writer) error {
	direction, err := risk.ParseDirection(opts.side)
	if err != nil {
		return err
	}

	candles, err := loadCandles(opts, zl)
	if err != nil {
		return err
	}
	window, ticks := splitWindow(candles, opts.window)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewRecorder(reg)
	health := monitoring.NewHealthChecker(cfg.Monitoring.HealthMaxAge)

	engine, err := risk.NewEngine(cfg.Risk.Params,
		risk.WithLogger(zl),
		risk.WithRecorder(monitoring.Recorders{metrics, health}))
	if err != nil {
		return err
	}
	if cfg.Risk.Matrix != nil {
		if err := engine.UpdateCorrelationMatrix(cfg.Risk.Matrix); err != nil {
			return err
		}
	}
	if err := engine.SetDailyStartValue(opts.balance); err != nil {
		return err
	}

	var server *http.Server
	if opts.metricsAddr != "" {
		server = startServer(opts.metricsAddr, reg, health, zl)
		defer shutdown(server, zl)
	}

	entry := opts.entry
	if entry == 0 {
		last, _ := types.Last(window)
		entry = last.Close
	}

	req := risk.AssessmentRequest{
		Instrument:     opts.symbol,
		EntryPrice:     entry,
		Size:           opts.size,
		Direction:      direction,
		AccountBalance: opts.balance,
		Leverage:       opts.leverage,
		Candles:        window,
	}
	if req.Size == 0 {
		if req.Size, err = defaultSize(cfg.Risk.Params, req); err != nil {
			return err
		}
	}

	assessment, err := engine.Assess(req)
	if err != nil {
		return err
	}
	printAssessment(out, cfg, req, assessment)

	if opts.replay && assessment.CanOpenPosition && assessment.RecommendedSize > 0 {
		result, err := replay(engine, req, assessment, ticks)
		if err != nil {
			return err
		}
		printReplay(out, result)
		printPositions(out, engine.Positions())
	}

	snapshot, err := engine.Snapshot(opts.balance)
	if err != nil {
		return err
	}
	printPortfolio(out, snapshot)

	if server != nil {
		zl.Info("Serving metrics until interrupted", zap.String("addr", opts.metricsAddr))
		<-ctx.Done()
	}
	return nil
}

func loadCandles(opts options, zl *zap.Logger) ([]types.OHLCV, error) {
	candles, err := data.NewCSVProvider(zl).LoadData(opts.candles)
	if err != nil {
		return nil, err
	}

	var from, to time.Time
	if opts.from != "" {
		if from, err = time.Parse(dateLayout, opts.from); err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if opts.to != "" {
		if to, err = time.Parse(dateLayout, opts.to); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	candles = data.FilterByPeriod(data.FilterByDateRange(candles, from, to), opts.lookback)
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w after filtering", opts.candles, data.ErrNoData)
	}
	return candles, nil
}

// defaultSize sizes the trade from the parameters alone. No position is open
// yet, so correlation dampening does not apply.
func defaultSize(params risk.RiskParameters, req risk.AssessmentRequest) (float64, error) {
	levels, err := risk.ComputeLevels(indicators.NewWilderATR(), req.Candles, req.EntryPrice, req.Direction, params.LevelConfig())
	if err != nil {
		return 0, err
	}

	sizing, err := risk.ComputeSize(params, risk.SizingInput{
		AccountBalance: req.AccountBalance,
		EntryPrice:     req.EntryPrice,
		StopPrice:      levels.StopLoss,
		Volatility:     req.Candles,
	})
	if err != nil {
		return 0, err
	}
	return sizing.Quantity, nil
}

// splitWindow returns the assessment window and the candles after it
func splitWindow(candles []types.OHLCV, window int) ([]types.OHLCV, []types.OHLCV) {
	if window <= 0 || window >= len(candles) {
		return candles, nil
	}
	return candles[:window], candles[window:]
}

type replayResult struct {
	Ticks       int
	ExitReason  string
	ExitPrice   float64
	RealizedPnL float64
	Balance     float64
	StopMoves   int
	Emergency   []string
}

// replay opens the assessed position and feeds each candle close through the
// tracker until the stop, the target or the emergency monitor closes it.
func replay(engine *risk.Engine, req risk.AssessmentRequest, a risk.RiskAssessment, ticks []types.OHLCV) (replayResult, error) {
	quantity := a.RecommendedSize
	if req.Direction == risk.Short {
		quantity = -quantity
	}

	id, err := engine.AddPosition(req.Instrument, req.EntryPrice, quantity, req.Leverage,
		risk.PriceOf(a.StopLossPrice), risk.PriceOf(a.TakeProfitPrice))
	if err != nil {
		return replayResult{}, err
	}

	result := replayResult{Balance: req.AccountBalance, ExitReason: "open"}
	for _, candle := range ticks {
		result.Ticks++
		update := engine.UpdatePosition(id, candle.Close)
		if update.StopMoved {
			result.StopMoves++
		}

		pos, ok := engine.Position(id)
		if !ok {
			break
		}

		if shouldStop, reasons := engine.CheckEmergencyStop(req.AccountBalance); shouldStop {
			result.Emergency = reasons
			result.ExitReason = "emergency stop"
		}
		switch {
		case pos.StopHit():
			result.ExitReason = "stop loss"
		case pos.TargetHit():
			result.ExitReason = "take profit"
		case result.Emergency == nil:
			continue
		}

		result.ExitPrice = pos.CurrentPrice
		result.RealizedPnL = pos.UnrealizedPnL
		result.Balance += pos.UnrealizedPnL
		engine.RemovePosition(id)
		break
	}

	return result, nil
}

func startServer(addr string, reg *prometheus.Registry, health *monitoring.HealthChecker, zl *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler(reg))
	mux.Handle("/health", health)

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}

func shutdown(server *http.Server, zl *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zl.Warn("Metrics server shutdown", zap.Error(err))
	}
}
