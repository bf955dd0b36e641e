package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
)

func TestRecorder_Snapshot(t *testing.T) {
	recorder := NewRecorder(prometheus.NewRegistry())

	recorder.RecordSnapshot(risk.PortfolioRisk{
		TotalValue:          10120,
		TotalExposure:       2280,
		TotalRiskPct:        0.7,
		CurrentDrawdownPct:  1.5,
		MaxDrawdownPct:      3,
		DailyPnLPct:         -0.4,
		LeverageUtilization: 0.228,
		CorrelationRisk:     0.5,
		OpenPositions:       2,
	})

	assert.Equal(t, 10120.0, testutil.ToFloat64(recorder.equity))
	assert.Equal(t, 2280.0, testutil.ToFloat64(recorder.exposure))
	assert.Equal(t, 0.7, testutil.ToFloat64(recorder.totalRiskPct))
	assert.Equal(t, 1.5, testutil.ToFloat64(recorder.drawdownPct))
	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.maxDrawdownPct))
	assert.Equal(t, -0.4, testutil.ToFloat64(recorder.dailyPnLPct))
	assert.Equal(t, 0.228, testutil.ToFloat64(recorder.leverageUtilization))
	assert.Equal(t, 0.5, testutil.ToFloat64(recorder.correlationRisk))
	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.openPositions))
}

func TestRecorder_Assessments(t *testing.T) {
	recorder := NewRecorder(prometheus.NewRegistry())

	recorder.RecordAssessment("BTCUSDT", risk.RiskAssessment{CanOpenPosition: true, RecommendedSize: 5})
	recorder.RecordAssessment("BTCUSDT", risk.RiskAssessment{CanOpenPosition: false, RecommendedSize: 2})
	recorder.RecordAssessment("BTCUSDT", risk.RiskAssessment{CanOpenPosition: true, RecommendedSize: 3})

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.assessmentsTotal.WithLabelValues("BTCUSDT", OutcomeApproved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.assessmentsTotal.WithLabelValues("BTCUSDT", OutcomeBlocked)))
	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.recommendedSize.WithLabelValues("BTCUSDT")))
}

func TestRecorder_EmergencyStops(t *testing.T) {
	recorder := NewRecorder(prometheus.NewRegistry())

	recorder.RecordEmergencyStop(nil)
	recorder.RecordEmergencyStop([]risk.EmergencyTrigger{risk.TriggerDailyLoss, risk.TriggerDrawdown})
	recorder.RecordEmergencyStop([]risk.EmergencyTrigger{risk.TriggerDailyLoss})

	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.emergencyChecks))
	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.emergencyStops.WithLabelValues(string(risk.TriggerDailyLoss))))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.emergencyStops.WithLabelValues(string(risk.TriggerDrawdown))))
}

func TestRecorder_WiredIntoEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	engine, err := risk.NewEngine(risk.Moderate(), risk.WithRecorder(recorder))
	require.NoError(t, err)
	require.NoError(t, engine.SetDailyStartValue(10000))

	_, err = engine.AddPosition("BTCUSDT", 100, 1, 1, risk.PriceOf(98), risk.NoPrice)
	require.NoError(t, err)
	shouldStop, _ := engine.CheckEmergencyStop(9400)
	require.True(t, shouldStop)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.openPositions))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.emergencyStops.WithLabelValues(string(risk.TriggerDailyLoss))))

	expected := `
# HELP risk_engine_emergency_checks_total Total number of emergency stop evaluations
# TYPE risk_engine_emergency_checks_total counter
risk_engine_emergency_checks_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "risk_engine_emergency_checks_total"))
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)
	recorder.RecordSnapshot(risk.PortfolioRisk{TotalValue: 1234})

	rec := httptest.NewRecorder()
	NewMetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "risk_engine_portfolio_value 1234")
}

func TestRecorder_AssessmentUpdatesPortfolioGauges(t *testing.T) {
	recorder := NewRecorder(prometheus.NewRegistry())
	engine, err := risk.NewEngine(risk.Moderate(), risk.WithRecorder(Recorders{recorder}))
	require.NoError(t, err)

	_, err = engine.AddPosition("ETHUSDT", 100, 2, 1, risk.PriceOf(98), risk.NoPrice)
	require.NoError(t, err)
	_, err = engine.Assess(risk.AssessmentRequest{
		Instrument: "BTCUSDT", EntryPrice: 100, Size: 1, Direction: risk.Long,
		AccountBalance: 10000, Leverage: 1,
	})
	require.NoError(t, err)

	latest, ok := engine.LatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.openPositions))
	assert.Equal(t, latest.TotalRiskPct, testutil.ToFloat64(recorder.totalRiskPct))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.assessmentsTotal.WithLabelValues("BTCUSDT", OutcomeApproved)))
}
