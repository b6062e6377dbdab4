package event

import (
	"PredictLedger/internal/domain"
	"time"

	"github.com/google/uuid"
)

// MarketCreated records a new market and its seed liquidity
type MarketCreated struct {
	OperationID   uuid.UUID `json:"operation_id"`
	Market        uint64    `json:"market_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Creator       uuid.UUID `json:"creator"`
	InitialAmount uint64    `json:"initial_amount"`
	YesReserve    uint64    `json:"yes_reserve"`
	NoReserve     uint64    `json:"no_reserve"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *MarketCreated) IdempotencyKey() string {
	return m.OperationID.String()
}

func (m *MarketCreated) EventType() EventType {
	return EventTypeMarketCreated
}

func (m *MarketCreated) MarketID() *uint64 {
	return marketRef(m.Market)
}

// MarketResolved records the winning outcome of a market
type MarketResolved struct {
	OperationID    uuid.UUID   `json:"operation_id"`
	Market         uint64      `json:"market_id"`
	WinningOutcome domain.Side `json:"winning_outcome"`
	ResolvedBy     uuid.UUID   `json:"resolved_by"`
	LiquidityPool  uint64      `json:"liquidity_pool"`
	Timestamp      time.Time   `json:"timestamp"`
}

func (m *MarketResolved) IdempotencyKey() string {
	return m.OperationID.String()
}

func (m *MarketResolved) EventType() EventType {
	return EventTypeMarketResolved
}

func (m *MarketResolved) MarketID() *uint64 {
	return marketRef(m.Market)
}
