package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
)

// TrailingConfig controls the trailing-stop ratchet
type TrailingConfig struct {
	Enabled bool
	Pct     float64 // percent of current price
}

// PositionUpdate reports what a price tick changed
type PositionUpdate struct {
	Found        bool
	StopMoved    bool
	PreviousStop float64
	NewStop      float64
}

// PositionTracker owns the open positions. It is not safe for concurrent use;
// Engine serializes access to it.
type PositionTracker struct {
	positions map[PositionID]*PositionRisk
	now       func() time.Time
	newID     func() PositionID
}

// NewPositionTracker creates an empty tracker
func NewPositionTracker(now func() time.Time) *PositionTracker {
	if now == nil {
		now = time.Now
	}
	return &PositionTracker{
		positions: make(map[PositionID]*PositionRisk),
		now:       now,
		newID: func() PositionID {
			return PositionID(uuid.NewString())
		},
	}
}

// Add opens a position. Direction follows the sign of quantity.
func (t *PositionTracker) Add(instrument string, entryPrice, quantity, leverage float64, stop, target OptionalPrice) (PositionID, error) {
	switch {
	case instrument == "":
		return "", rerrors.NewInvalidInputError("tracker", "AddPosition", "instrument is required")
	case !isPositiveFinite(entryPrice):
		return "", rerrors.NewInvalidInputError("tracker", "AddPosition",
			fmt.Sprintf("entry price must be positive, got %v", entryPrice))
	case quantity == 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0):
		return "", rerrors.NewInvalidInputError("tracker", "AddPosition",
			fmt.Sprintf("quantity must be non-zero and finite, got %v", quantity))
	case !isPositiveFinite(leverage):
		return "", rerrors.NewInvalidInputError("tracker", "AddPosition",
			fmt.Sprintf("leverage must be positive, got %v", leverage))
	}

	var riskAmount float64
	if stop.Valid {
		riskAmount = math.Abs(entryPrice-stop.Value) * math.Abs(quantity)
	}

	now := t.now()
	id := t.newID()
	t.positions[id] = &PositionRisk{
		ID:           id,
		Instrument:   instrument,
		Direction:    directionOf(quantity),
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		Quantity:     quantity,
		Leverage:     leverage,
		StopLoss:     stop,
		TakeProfit:   target,
		RiskAmount:   riskAmount,
		OpenedAt:     now,
		UpdatedAt:    now,
	}

	return id, nil
}

// Update recomputes P&L at currentPrice and ratchets the trailing stop.
// Unknown ids are ignored: the position may already be closed upstream.
func (t *PositionTracker) Update(id PositionID, currentPrice float64, trailing TrailingConfig) PositionUpdate {
	pos, ok := t.positions[id]
	if !ok {
		return PositionUpdate{}
	}

	pos.CurrentPrice = currentPrice
	pos.UnrealizedPnL = (currentPrice - pos.EntryPrice) * pos.Quantity * pos.Leverage
	pos.UnrealizedPnLPct = pos.UnrealizedPnL / (pos.EntryPrice * math.Abs(pos.Quantity)) * 100
	pos.UpdatedAt = t.now()

	update := PositionUpdate{Found: true}
	if !trailing.Enabled || !pos.StopLoss.Valid {
		return update
	}

	// The stop only ever tightens, so stale or duplicate ticks are harmless.
	offset := currentPrice * trailing.Pct / 100
	switch pos.Direction {
	case Long:
		if currentPrice > pos.EntryPrice {
			if candidate := currentPrice - offset; candidate > pos.StopLoss.Value {
				update.StopMoved, update.PreviousStop, update.NewStop = true, pos.StopLoss.Value, candidate
			}
		}
	case Short:
		if currentPrice < pos.EntryPrice {
			if candidate := currentPrice + offset; candidate < pos.StopLoss.Value {
				update.StopMoved, update.PreviousStop, update.NewStop = true, pos.StopLoss.Value, candidate
			}
		}
	}
	if update.StopMoved {
		pos.StopLoss = PriceOf(update.NewStop)
	}

	return update
}

// Remove deletes a position; it reports whether one was present
func (t *PositionTracker) Remove(id PositionID) bool {
	if _, ok := t.positions[id]; !ok {
		return false
	}
	delete(t.positions, id)
	return true
}

// Get returns a copy of one position
func (t *PositionTracker) Get(id PositionID) (PositionRisk, bool) {
	pos, ok := t.positions[id]
	if !ok {
		return PositionRisk{}, false
	}
	return *pos, true
}

// List returns copies of all positions ordered by open time
func (t *PositionTracker) List() []PositionRisk {
	out := make([]PositionRisk, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Len returns the number of open positions
func (t *PositionTracker) Len() int {
	return len(t.positions)
}

// CountByInstrument returns the number of open positions on instrument
func (t *PositionTracker) CountByInstrument(instrument string) int {
	count := 0
	for _, pos := range t.positions {
		if pos.Instrument == instrument {
			count++
		}
	}
	return count
}

// HeldInstruments returns the distinct instruments with open positions, sorted
func (t *PositionTracker) HeldInstruments() []string {
	seen := make(map[string]struct{}, len(t.positions))
	for _, pos := range t.positions {
		seen[pos.Instrument] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for inst := range seen {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// setRiskPct refreshes each position's risk share of the account
func (t *PositionTracker) setRiskPct(accountBalance float64) {
	for _, pos := range t.positions {
		pos.RiskPct = pos.RiskAmount / accountBalance * 100
	}
}
