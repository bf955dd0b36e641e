package risk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
)

// Engine is one risk session: it owns the open positions, the high-water mark,
// the daily start value and the correlation matrix behind a single lock.
type Engine struct {
	mu         sync.Mutex
	params     RiskParameters
	tracker    *PositionTracker
	aggregator portfolioAggregator
	latest     *PortfolioRisk

	atr      ATRProvider
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithATR replaces the default Wilder ATR provider
func WithATR(provider ATRProvider) Option {
	return func(e *Engine) {
		if provider != nil {
			e.atr = provider
		}
	}
}

// WithRecorder attaches a telemetry recorder
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a risk session with validated parameters
func NewEngine(params RiskParameters, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		params: params,
		atr:    indicators.NewWilderATR(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tracker = NewPositionTracker(e.now)

	return e, nil
}

// Parameters returns the current parameters
func (e *Engine) Parameters() RiskParameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// UpdateParameters replaces the parameters wholesale after validation
func (e *Engine) UpdateParameters(params RiskParameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.params = params
	e.mu.Unlock()

	e.logger.Info("Risk parameters updated",
		zap.Float64("max_account_risk_pct", params.MaxAccountRiskPct),
		zap.Float64("max_daily_loss_pct", params.MaxDailyLossPct),
		zap.Float64("max_drawdown_pct", params.MaxDrawdownPct),
		zap.Float64("max_leverage", params.MaxLeverage))
	return nil
}

// UpdateCorrelationMatrix installs a copy of the caller's matrix. A matrix with
// a coefficient outside [-1, 1] is rejected and the previous one is kept.
func (e *Engine) UpdateCorrelationMatrix(matrix CorrelationMatrix) error {
	if err := matrix.Validate(); err != nil {
		return err
	}
	clone := matrix.Clone()

	e.mu.Lock()
	e.aggregator.correlations = clone
	e.mu.Unlock()

	e.logger.Debug("Correlation matrix updated", zap.Int("instruments", len(clone)))
	return nil
}

// SetDailyStartValue marks the start-of-day portfolio value used for daily P&L.
// The value must be positive, otherwise the daily loss ceiling could never fire.
func (e *Engine) SetDailyStartValue(value float64) error {
	if !isPositiveFinite(value) {
		return rerrors.NewInvalidInputError("engine", "SetDailyStartValue",
			fmt.Sprintf("daily start value must be positive, got %v", value)).
			WithContext("value", value)
	}

	e.mu.Lock()
	e.aggregator.dailyStartValue = value
	e.aggregator.dailyStartSet = true
	e.mu.Unlock()

	e.logger.Info("Daily start value set", zap.Float64("value", value))
	return nil
}

// AddPosition starts tracking a filled position and returns its id.
// A negative quantity opens a short.
func (e *Engine) AddPosition(instrument string, entryPrice, quantity, leverage float64, stop, target OptionalPrice) (PositionID, error) {
	e.mu.Lock()
	id, err := e.tracker.Add(instrument, entryPrice, quantity, leverage, stop, target)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	e.logger.Info("Position added",
		zap.String("position_id", string(id)),
		zap.String("instrument", instrument),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("quantity", quantity),
		zap.Float64("leverage", leverage),
		zap.Bool("has_stop", stop.Valid))
	return id, nil
}

// UpdatePosition applies a price tick. Unknown ids and non-positive prices are ignored.
func (e *Engine) UpdatePosition(id PositionID, currentPrice float64) PositionUpdate {
	if !isPositiveFinite(currentPrice) {
		e.logger.Warn("Ignoring invalid price tick",
			zap.String("position_id", string(id)), zap.Float64("price", currentPrice))
		return PositionUpdate{}
	}

	e.mu.Lock()
	trailing := TrailingConfig{Enabled: e.params.UseTrailingStop, Pct: e.params.TrailingStopPct}
	update := e.tracker.Update(id, currentPrice, trailing)
	e.mu.Unlock()

	if update.StopMoved {
		e.logger.Debug("Trailing stop advanced",
			zap.String("position_id", string(id)),
			zap.Float64("price", currentPrice),
			zap.Float64("previous_stop", update.PreviousStop),
			zap.Float64("new_stop", update.NewStop))
	}
	return update
}

// RemovePosition stops tracking a closed position; removing twice is safe
func (e *Engine) RemovePosition(id PositionID) {
	e.mu.Lock()
	removed := e.tracker.Remove(id)
	e.mu.Unlock()

	if removed {
		e.logger.Info("Position removed", zap.String("position_id", string(id)))
	}
}

// Position returns a copy of one tracked position
func (e *Engine) Position(id PositionID) (PositionRisk, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Get(id)
}

// Positions returns copies of all tracked positions, oldest first
func (e *Engine) Positions() []PositionRisk {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.List()
}

// Snapshot computes portfolio risk for accountBalance and advances the high-water mark
func (e *Engine) Snapshot(accountBalance float64) (PortfolioRisk, error) {
	if err := checkBalance("Snapshot", accountBalance); err != nil {
		return PortfolioRisk{}, err
	}

	e.mu.Lock()
	snapshot := e.snapshotLocked(accountBalance)
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.RecordSnapshot(snapshot)
	}
	return snapshot, nil
}

// LatestSnapshot returns a copy of the most recent snapshot, if any
func (e *Engine) LatestSnapshot() (PortfolioRisk, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return PortfolioRisk{}, false
	}
	return *e.latest, true
}

// CheckEmergencyStop re-derives a snapshot and reports whether all trading must halt.
// It never fails: an unusable balance is itself a reason to stop.
func (e *Engine) CheckEmergencyStop(accountBalance float64) (bool, []string) {
	if err := checkBalance("CheckEmergencyStop", accountBalance); err != nil {
		reasons := []string{fmt.Sprintf("Account balance %.2f is not usable", accountBalance)}
		e.logger.Warn("Emergency stop triggered", zap.Strings("reasons", reasons))
		if e.recorder != nil {
			e.recorder.RecordEmergencyStop([]EmergencyTrigger{TriggerInvalidBalance})
		}
		return true, reasons
	}

	e.mu.Lock()
	snapshot := e.snapshotLocked(accountBalance)
	triggers, reasons := evaluateEmergency(e.params, snapshot)
	e.mu.Unlock()

	if len(reasons) > 0 {
		e.logger.Warn("Emergency stop triggered",
			zap.Strings("reasons", reasons),
			zap.Float64("daily_pnl_pct", snapshot.DailyPnLPct),
			zap.Float64("drawdown_pct", snapshot.CurrentDrawdownPct),
			zap.Float64("total_risk_pct", snapshot.TotalRiskPct))
	}

	if e.recorder != nil {
		e.recorder.RecordSnapshot(snapshot)
		e.recorder.RecordEmergencyStop(triggers)
	}
	return len(reasons) > 0, reasons
}

// snapshotLocked must be called with e.mu held
func (e *Engine) snapshotLocked(accountBalance float64) PortfolioRisk {
	snapshot := e.aggregator.snapshot(e.tracker, accountBalance, e.now())
	latest := snapshot
	e.latest = &latest
	return snapshot
}

func checkBalance(operation string, accountBalance float64) error {
	if !isPositiveFinite(accountBalance) {
		return rerrors.NewInvalidInputError("engine", operation,
			fmt.Sprintf("account balance must be positive, got %v", accountBalance)).
			WithContext("balance", accountBalance)
	}
	return nil
}
