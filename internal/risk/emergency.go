package risk

import "fmt"

// EmergencyTrigger names the ceiling that tripped the circuit breaker
type EmergencyTrigger string

const (
	TriggerDailyLoss      EmergencyTrigger = "daily_loss"
	TriggerDrawdown       EmergencyTrigger = "drawdown"
	TriggerTotalRisk      EmergencyTrigger = "total_risk"
	TriggerInvalidBalance EmergencyTrigger = "invalid_balance"
)

// emergencyRiskMultiple is stricter than the pre-trade check, which uses 2x
const emergencyRiskMultiple = 3

// evaluateEmergency checks a snapshot against the hard ceilings
func evaluateEmergency(params RiskParameters, p PortfolioRisk) ([]EmergencyTrigger, []string) {
	var triggers []EmergencyTrigger
	var reasons []string

	if p.DailyPnLPct < -params.MaxDailyLossPct {
		triggers = append(triggers, TriggerDailyLoss)
		reasons = append(reasons, fmt.Sprintf("Daily loss %.2f%% exceeds maximum %.2f%%",
			-p.DailyPnLPct, params.MaxDailyLossPct))
	}

	if p.CurrentDrawdownPct > params.MaxDrawdownPct {
		triggers = append(triggers, TriggerDrawdown)
		reasons = append(reasons, fmt.Sprintf("Drawdown %.2f%% exceeds maximum %.2f%%",
			p.CurrentDrawdownPct, params.MaxDrawdownPct))
	}

	if limit := params.MaxAccountRiskPct * emergencyRiskMultiple; p.TotalRiskPct > limit {
		triggers = append(triggers, TriggerTotalRisk)
		reasons = append(reasons, fmt.Sprintf("Total portfolio risk %.2f%% exceeds emergency limit %.2f%%",
			p.TotalRiskPct, limit))
	}

	return triggers, reasons
}
