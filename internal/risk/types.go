package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Direction is the side of a trade
type Direction int

const (
	Long Direction = iota + 1
	Short
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether d is Long or Short
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// sign is +1 for long and -1 for short
func (d Direction) sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// ParseDirection accepts long/buy and short/sell in any case
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// directionOf derives the direction from a signed quantity
func directionOf(quantity float64) Direction {
	if quantity < 0 {
		return Short
	}
	return Long
}

// PositionID is the opaque handle returned by AddPosition
type PositionID string

// OptionalPrice is a price level that may be absent
type OptionalPrice struct {
	Value float64
	Valid bool
}

// PriceOf returns a present price level
func PriceOf(v float64) OptionalPrice {
	return OptionalPrice{Value: v, Valid: true}
}

// NoPrice is the absent price level
var NoPrice = OptionalPrice{}

// PositionRisk is the live risk state of one open position
type PositionRisk struct {
	ID               PositionID    `json:"id"`
	Instrument       string        `json:"instrument"`
	Direction        Direction     `json:"direction"`
	EntryPrice       float64       `json:"entry_price"`
	CurrentPrice     float64       `json:"current_price"`
	Quantity         float64       `json:"quantity"` // signed, negative for shorts
	Leverage         float64       `json:"leverage"`
	UnrealizedPnL    float64       `json:"unrealized_pnl"`
	UnrealizedPnLPct float64       `json:"unrealized_pnl_pct"`
	StopLoss         OptionalPrice `json:"stop_loss"`
	TakeProfit       OptionalPrice `json:"take_profit"`
	RiskAmount       float64       `json:"risk_amount"`
	RiskPct          float64       `json:"risk_pct"` // of account, as of the latest snapshot
	OpenedAt         time.Time     `json:"opened_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// StopHit reports whether the current price has crossed the stop-loss
func (p PositionRisk) StopHit() bool {
	if !p.StopLoss.Valid {
		return false
	}
	if p.Direction == Short {
		return p.CurrentPrice >= p.StopLoss.Value
	}
	return p.CurrentPrice <= p.StopLoss.Value
}

// TargetHit reports whether the current price has reached the take-profit
func (p PositionRisk) TargetHit() bool {
	if !p.TakeProfit.Valid {
		return false
	}
	if p.Direction == Short {
		return p.CurrentPrice <= p.TakeProfit.Value
	}
	return p.CurrentPrice >= p.TakeProfit.Value
}

// Notional returns |quantity| x current price x leverage
func (p PositionRisk) Notional() float64 {
	return math.Abs(p.Quantity) * p.CurrentPrice * p.Leverage
}

// PortfolioRisk is a point-in-time snapshot of portfolio risk
type PortfolioRisk struct {
	AccountBalance        float64   `json:"account_balance"`
	TotalValue            float64   `json:"total_value"`
	TotalExposure         float64   `json:"total_exposure"`
	TotalRiskAmount       float64   `json:"total_risk_amount"`
	TotalRiskPct          float64   `json:"total_risk_pct"`
	TotalUnrealizedPnL    float64   `json:"total_unrealized_pnl"`
	TotalUnrealizedPnLPct float64   `json:"total_unrealized_pnl_pct"`
	HighWaterMark         float64   `json:"high_water_mark"`
	MaxDrawdownPct        float64   `json:"max_drawdown_pct"`
	CurrentDrawdownPct    float64   `json:"current_drawdown_pct"`
	DailyStartValue       float64   `json:"daily_start_value"`
	DailyPnL              float64   `json:"daily_pnl"`
	DailyPnLPct           float64   `json:"daily_pnl_pct"`
	OpenPositions         int       `json:"open_positions"`
	LeverageUtilization   float64   `json:"leverage_utilization"`
	CorrelationRisk       float64   `json:"correlation_risk"`
	Timestamp             time.Time `json:"timestamp"`
}

// RiskAssessment is the pre-trade decision with its reasons
type RiskAssessment struct {
	CanOpenPosition bool     `json:"can_open_position"`
	RecommendedSize float64  `json:"recommended_size"`
	OptimalSize     float64  `json:"optimal_size"`
	StopLossPrice   float64  `json:"stop_loss_price"`
	TakeProfitPrice float64  `json:"take_profit_price"`
	RiskReward      float64  `json:"risk_reward"`
	Reasons         []string `json:"reasons"`
	Warnings        []string `json:"warnings"`
}

// AssessmentRequest describes a proposed trade
type AssessmentRequest struct {
	Instrument     string
	EntryPrice     float64
	Size           float64
	Direction      Direction
	AccountBalance float64
	Leverage       float64
	Candles        []types.OHLCV // ATR and volatility input, may be nil when neither is enabled
}

// ATRProvider returns the current Average True Range of a candle window
type ATRProvider interface {
	ATR(data []types.OHLCV, period int) (float64, error)
}

// ATRFunc adapts a plain function to ATRProvider
type ATRFunc func(data []types.OHLCV, period int) (float64, error)

// ATR calls f
func (f ATRFunc) ATR(data []types.OHLCV, period int) (float64, error) {
	return f(data, period)
}

// Recorder receives engine outputs for telemetry
type Recorder interface {
	RecordSnapshot(snapshot PortfolioRisk)
	RecordAssessment(instrument string, assessment RiskAssessment)
	RecordEmergencyStop(triggers []EmergencyTrigger)
}
