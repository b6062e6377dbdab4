package state

import (
	"PredictLedger/internal/domain"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MarketStatus is the lifecycle state of a market
type MarketStatus int32

const (
	MarketStatusOpen MarketStatus = iota
	MarketStatusResolved
	// MarketStatusFrozen is reserved for two-phase settlement. No operation enters it yet.
	MarketStatusFrozen
)

func (s MarketStatus) String() string {
	switch s {
	case MarketStatusOpen:
		return "Open"
	case MarketStatusResolved:
		return "Resolved"
	case MarketStatusFrozen:
		return "Frozen"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions. Resolved is terminal.
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	validTransitions := map[MarketStatus][]MarketStatus{
		MarketStatusOpen: {
			MarketStatusResolved,
			MarketStatusFrozen,
		},
		MarketStatusFrozen: {
			MarketStatusResolved,
		},
	}

	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

func (s MarketStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MarketStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Open":
		*s = MarketStatusOpen
	case "Resolved":
		*s = MarketStatusResolved
	case "Frozen":
		*s = MarketStatusFrozen
	default:
		return fmt.Errorf("unknown market status %q", b)
	}
	return nil
}

// Market is a two-outcome market priced by a constant-product reserve pair
type Market struct {
	ID                 uint64       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	YesReserve         uint64       `json:"yes_reserve"`
	NoReserve          uint64       `json:"no_reserve"`
	LiquidityPool      uint64       `json:"liquidity_pool"`
	Status             MarketStatus `json:"status"`
	WinningOutcome     *domain.Side `json:"winning_outcome,omitempty"`
	Creator            uuid.UUID    `json:"creator"`
	Admin              uuid.UUID    `json:"admin"`
	TotalFeesCollected uint64       `json:"total_fees_collected"`
	CreatedAt          time.Time    `json:"created_at"`
	ResolvedAt         *time.Time   `json:"resolved_at,omitempty"`
	Version            int64        `json:"version"`
}

// IsOpen reports whether the market accepts trades
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}

// Reserve returns the reserve backing side
func (m *Market) Reserve(side domain.Side) uint64 {
	if side == domain.Yes {
		return m.YesReserve
	}
	return m.NoReserve
}

// Clone returns a deep copy safe to hand out of the engine
func (m *Market) Clone() Market {
	c := *m
	if m.WinningOutcome != nil {
		o := *m.WinningOutcome
		c.WinningOutcome = &o
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// CanonicalBytes returns deterministic serialization for hashing.
// Free text and timestamps are excluded.
func (m *Market) CanonicalBytes() []byte {
	buf := make([]byte, 0, 96)
	buf = binary.LittleEndian.AppendUint64(buf, m.ID)
	buf = binary.LittleEndian.AppendUint64(buf, m.YesReserve)
	buf = binary.LittleEndian.AppendUint64(buf, m.NoReserve)
	buf = binary.LittleEndian.AppendUint64(buf, m.LiquidityPool)
	buf = append(buf, byte(m.Status))
	if m.WinningOutcome != nil {
		buf = append(buf, 1, byte(*m.WinningOutcome))
	} else {
		buf = append(buf, 0, 0)
	}
	buf = append(buf, m.Admin[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, m.TotalFeesCollected)
	return buf
}
