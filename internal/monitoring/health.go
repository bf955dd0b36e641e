package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
)

// Health statuses
const (
	StatusHealthy = "healthy"
	StatusHalted  = "halted"
	StatusStale   = "stale"
)

// HealthChecker reports whether the engine last asked for trading to halt
type HealthChecker struct {
	mu           sync.RWMutex
	startedAt    time.Time
	lastSnapshot time.Time
	drawdownPct  float64
	dailyPnLPct  float64
	triggers     []risk.EmergencyTrigger
	maxAge       time.Duration
	now          func() time.Time
}

// HealthStatus is the JSON body served on /health
type HealthStatus struct {
	Status       string                  `json:"status"`
	Timestamp    time.Time               `json:"timestamp"`
	LastSnapshot time.Time               `json:"last_snapshot"`
	DrawdownPct  float64                 `json:"drawdown_pct"`
	DailyPnLPct  float64                 `json:"daily_pnl_pct"`
	Uptime       string                  `json:"uptime"`
	Triggers     []risk.EmergencyTrigger `json:"triggers,omitempty"`
}

var _ risk.Recorder = (*HealthChecker)(nil)

// NewHealthChecker creates a checker that reports stale once no snapshot was
// seen for maxAge. A zero maxAge disables the staleness check.
func NewHealthChecker(maxAge time.Duration) *HealthChecker {
	return &HealthChecker{
		startedAt: time.Now(),
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// RecordSnapshot remembers when the last snapshot was taken
func (h *HealthChecker) RecordSnapshot(s risk.PortfolioRisk) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSnapshot = s.Timestamp
	h.drawdownPct = s.CurrentDrawdownPct
	h.dailyPnLPct = s.DailyPnLPct
}

// RecordAssessment is a no-op; assessments do not affect health
func (h *HealthChecker) RecordAssessment(string, risk.RiskAssessment) {}

// RecordEmergencyStop keeps the triggers of the latest evaluation; an empty
// evaluation clears the halted state.
func (h *HealthChecker) RecordEmergencyStop(triggers []risk.EmergencyTrigger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggers = append([]risk.EmergencyTrigger(nil), triggers...)
}

// Status returns the current health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := StatusHealthy
	switch {
	case len(h.triggers) > 0:
		status = StatusHalted
	case h.maxAge > 0 && now.Sub(h.lastSnapshot) > h.maxAge:
		status = StatusStale
	}

	return HealthStatus{
		Status:       status,
		Timestamp:    now,
		LastSnapshot: h.lastSnapshot,
		DrawdownPct:  h.drawdownPct,
		DailyPnLPct:  h.dailyPnLPct,
		Uptime:       now.Sub(h.startedAt).String(),
		Triggers:     append([]risk.EmergencyTrigger(nil), h.triggers...),
	}
}

// ServeHTTP serves the current status, with 503 unless healthy
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if health.Status != StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// Recorders fans every event out to each recorder in order
type Recorders []risk.Recorder

// RecordSnapshot forwards the snapshot to every recorder
func (rs Recorders) RecordSnapshot(s risk.PortfolioRisk) {
	for _, r := range rs {
		r.RecordSnapshot(s)
	}
}

// RecordAssessment forwards the assessment to every recorder
func (rs Recorders) RecordAssessment(instrument string, a risk.RiskAssessment) {
	for _, r := range rs {
		r.RecordAssessment(instrument, a)
	}
}

// RecordEmergencyStop forwards the triggers to every recorder
func (rs Recorders) RecordEmergencyStop(triggers []risk.EmergencyTrigger) {
	for _, r := range rs {
		r.RecordEmergencyStop(triggers)
	}
}
