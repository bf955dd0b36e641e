package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
)

const namespace = "risk_engine"

// Assessment outcomes
const (
	OutcomeApproved = "approved"
	OutcomeBlocked  = "blocked"
)

// Recorder exports engine snapshots, assessments and emergency checks as Prometheus metrics
type Recorder struct {
	// Portfolio metrics
	equity              prometheus.Gauge
	exposure            prometheus.Gauge
	totalRiskPct        prometheus.Gauge
	drawdownPct         prometheus.Gauge
	maxDrawdownPct      prometheus.Gauge
	dailyPnLPct         prometheus.Gauge
	leverageUtilization prometheus.Gauge
	correlationRisk     prometheus.Gauge
	openPositions       prometheus.Gauge

	// Decision metrics
	assessmentsTotal *prometheus.CounterVec
	recommendedSize  *prometheus.GaugeVec
	emergencyChecks  prometheus.Counter
	emergencyStops   *prometheus.CounterVec
}

var _ risk.Recorder = (*Recorder)(nil)

// NewRecorder creates the risk metrics and registers them with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	r := &Recorder{
		equity:              gauge("portfolio_value", "Account balance plus unrealized P&L"),
		exposure:            gauge("portfolio_exposure", "Sum of leveraged notional over open positions"),
		totalRiskPct:        gauge("portfolio_risk_pct", "Capital at risk to stops as percent of balance"),
		drawdownPct:         gauge("portfolio_drawdown_pct", "Current drawdown from the high-water mark"),
		maxDrawdownPct:      gauge("portfolio_max_drawdown_pct", "Largest drawdown seen this session"),
		dailyPnLPct:         gauge("portfolio_daily_pnl_pct", "P&L since the daily start value in percent"),
		leverageUtilization: gauge("portfolio_leverage_utilization", "Exposure divided by account balance"),
		correlationRisk:     gauge("portfolio_correlation_risk", "Mean absolute pairwise correlation of open positions"),
		openPositions:       gauge("open_positions", "Number of tracked positions"),

		assessmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assessments_total",
				Help:      "Total number of trade assessments by outcome",
			},
			[]string{"instrument", "outcome"},
		),
		recommendedSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recommended_size",
				Help:      "Last recommended order quantity",
			},
			[]string{"instrument"},
		),
		emergencyChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_checks_total",
			Help:      "Total number of emergency stop evaluations",
		}),
		emergencyStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emergency_stops_total",
				Help:      "Total number of emergency stop triggers",
			},
			[]string{"trigger"},
		),
	}

	reg.MustRegister(
		r.equity, r.exposure, r.totalRiskPct, r.drawdownPct, r.maxDrawdownPct,
		r.dailyPnLPct, r.leverageUtilization, r.correlationRisk, r.openPositions,
		r.assessmentsTotal, r.recommendedSize, r.emergencyChecks, r.emergencyStops,
	)
	return r
}

// RecordSnapshot updates the portfolio gauges
func (r *Recorder) RecordSnapshot(s risk.PortfolioRisk) {
	r.equity.Set(s.TotalValue)
	r.exposure.Set(s.TotalExposure)
	r.totalRiskPct.Set(s.TotalRiskPct)
	r.drawdownPct.Set(s.CurrentDrawdownPct)
	r.maxDrawdownPct.Set(s.MaxDrawdownPct)
	r.dailyPnLPct.Set(s.DailyPnLPct)
	r.leverageUtilization.Set(s.LeverageUtilization)
	r.correlationRisk.Set(s.CorrelationRisk)
	r.openPositions.Set(float64(s.OpenPositions))
}

// RecordAssessment counts an assessment by outcome
func (r *Recorder) RecordAssessment(instrument string, a risk.RiskAssessment) {
	r.assessmentsTotal.WithLabelValues(instrument, Outcome(a)).Inc()
	r.recommendedSize.WithLabelValues(instrument).Set(a.RecommendedSize)
}

// RecordEmergencyStop counts one evaluation and every trigger that fired
func (r *Recorder) RecordEmergencyStop(triggers []risk.EmergencyTrigger) {
	r.emergencyChecks.Inc()
	for _, trigger := range triggers {
		r.emergencyStops.WithLabelValues(string(trigger)).Inc()
	}
}

// Outcome classifies an assessment for the outcome label
func Outcome(a risk.RiskAssessment) string {
	if a.CanOpenPosition {
		return OutcomeApproved
	}
	return OutcomeBlocked
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a metrics handler serving the metrics gathered by g
func NewMetricsHandler(g prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{})}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
