package state

import (
	"PredictLedger/internal/domain"
	"encoding/binary"

	"github.com/google/uuid"
)

// Position is a user's outcome-token holding in one market
type Position struct {
	UserID        uuid.UUID `json:"user_id"`
	MarketID      uint64    `json:"market_id"`
	YesTokens     uint64    `json:"yes_tokens"`
	NoTokens      uint64    `json:"no_tokens"`
	ClaimedReward bool      `json:"claimed_reward"` // sticky once set
}

// Tokens returns the holding of side
func (p *Position) Tokens(side domain.Side) uint64 {
	if side == domain.Yes {
		return p.YesTokens
	}
	return p.NoTokens
}

// Credit adds tokens of side
func (p *Position) Credit(side domain.Side, amount uint64) {
	if side == domain.Yes {
		p.YesTokens += amount
	} else {
		p.NoTokens += amount
	}
}

// Debit removes tokens of side. Callers check the holding first.
func (p *Position) Debit(side domain.Side, amount uint64) {
	if side == domain.Yes {
		p.YesTokens -= amount
	} else {
		p.NoTokens -= amount
	}
}

// CanonicalBytes returns deterministic serialization for hashing
func (p *Position) CanonicalBytes() []byte {
	buf := make([]byte, 0, 48)
	buf = append(buf, p.UserID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, p.MarketID)
	buf = binary.LittleEndian.AppendUint64(buf, p.YesTokens)
	buf = binary.LittleEndian.AppendUint64(buf, p.NoTokens)
	if p.ClaimedReward {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}
