package risk

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
)

// validate is safe for concurrent use and caches struct metadata
var validate = validator.New()

// RiskParameters holds all risk limits. Percentages are expressed in percent (2 means 2%).
type RiskParameters struct {
	// Account level
	MaxAccountRiskPct float64 `json:"max_account_risk_pct" yaml:"max_account_risk_pct" validate:"gt=0"`
	MaxDailyLossPct   float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct" validate:"gt=0"`
	MaxDrawdownPct    float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct" validate:"gt=0"`

	// Position level
	MaxPositionSizePct        float64 `json:"max_position_size_pct" yaml:"max_position_size_pct" validate:"gt=0"`
	MaxLeverage               float64 `json:"max_leverage" yaml:"max_leverage" validate:"gte=1"`
	MaxPositionsPerInstrument int     `json:"max_positions_per_instrument" yaml:"max_positions_per_instrument" validate:"gte=1"`
	MaxTotalPositions         int     `json:"max_total_positions" yaml:"max_total_positions" validate:"gte=1"`

	// Stop logic
	UseATRStops      bool    `json:"use_atr_stops" yaml:"use_atr_stops"`
	ATRPeriod        int     `json:"atr_period" yaml:"atr_period" validate:"gte=1"`
	ATRMultiplier    float64 `json:"atr_multiplier" yaml:"atr_multiplier" validate:"gt=0"`
	FixedStopLossPct float64 `json:"fixed_stop_loss_pct" yaml:"fixed_stop_loss_pct" validate:"gt=0"`
	TakeProfitRatio  float64 `json:"take_profit_ratio" yaml:"take_profit_ratio" validate:"gt=0"` // reward:risk
	UseTrailingStop  bool    `json:"use_trailing_stop" yaml:"use_trailing_stop"`
	TrailingStopPct  float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct" validate:"gt=0"`

	// Sizing adjustments
	UseVolatilityAdjustment bool    `json:"use_volatility_adjustment" yaml:"use_volatility_adjustment"`
	BaseVolatilityPct       float64 `json:"base_volatility_pct" yaml:"base_volatility_pct" validate:"gt=0"`
	CorrelationThreshold    float64 `json:"correlation_threshold" yaml:"correlation_threshold" validate:"gte=0,lte=1"`

	// Lot step used to round sized quantities down; 0 disables rounding
	QuantityStep float64 `json:"quantity_step" yaml:"quantity_step" validate:"gte=0"`
}

// Validate checks the parameter invariants
func (p RiskParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return rerrors.WrapConfigurationError(err, "params", "Validate")
	}
	return nil
}

// LevelConfig extracts the stop/target settings
func (p RiskParameters) LevelConfig() LevelConfig {
	return LevelConfig{
		UseATR:          p.UseATRStops,
		ATRPeriod:       p.ATRPeriod,
		ATRMultiplier:   p.ATRMultiplier,
		FixedStopPct:    p.FixedStopLossPct,
		TakeProfitRatio: p.TakeProfitRatio,
	}
}

// Preset names
const (
	PresetConservative = "conservative"
	PresetModerate     = "moderate"
	PresetAggressive   = "aggressive"
)

// baseParameters holds the settings shared by every preset
func baseParameters() RiskParameters {
	return RiskParameters{
		UseATRStops:             false,
		ATRPeriod:               14,
		ATRMultiplier:           2.0,
		UseTrailingStop:         false,
		TrailingStopPct:         1.5,
		UseVolatilityAdjustment: false,
		BaseVolatilityPct:       2.0,
		CorrelationThreshold:    0.7,
	}
}

// Conservative returns the low-risk preset
func Conservative() RiskParameters {
	p := baseParameters()
	p.MaxAccountRiskPct = 1
	p.MaxDailyLossPct = 2
	p.MaxDrawdownPct = 5
	p.MaxPositionSizePct = 2
	p.MaxLeverage = 1
	p.MaxPositionsPerInstrument = 1
	p.MaxTotalPositions = 3
	p.FixedStopLossPct = 1
	p.TakeProfitRatio = 3
	return p
}

// Moderate returns the balanced preset
func Moderate() RiskParameters {
	p := baseParameters()
	p.MaxAccountRiskPct = 2
	p.MaxDailyLossPct = 5
	p.MaxDrawdownPct = 10
	p.MaxPositionSizePct = 5
	p.MaxLeverage = 3
	p.MaxPositionsPerInstrument = 2
	p.MaxTotalPositions = 5
	p.FixedStopLossPct = 2
	p.TakeProfitRatio = 2
	return p
}

// Aggressive returns the high-risk preset
func Aggressive() RiskParameters {
	p := baseParameters()
	p.MaxAccountRiskPct = 5
	p.MaxDailyLossPct = 10
	p.MaxDrawdownPct = 20
	p.MaxPositionSizePct = 10
	p.MaxLeverage = 5
	p.MaxPositionsPerInstrument = 3
	p.MaxTotalPositions = 10
	p.FixedStopLossPct = 3
	p.TakeProfitRatio = 1.5
	return p
}

// PresetByName returns one of the named presets
func PresetByName(name string) (RiskParameters, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetConservative:
		return Conservative(), nil
	case PresetModerate, "":
		return Moderate(), nil
	case PresetAggressive:
		return Aggressive(), nil
	default:
		return RiskParameters{}, rerrors.NewConfigurationError("params", "PresetByName",
			fmt.Sprintf("unknown risk preset %q", name))
	}
}
