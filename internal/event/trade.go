package event

import (
	"PredictLedger/internal/domain"
	"time"

	"github.com/google/uuid"
)

// Direction of a trade against the curve
type Direction int32

const (
	DirectionBuy Direction = iota
	DirectionSell
)

func (d Direction) String() string {
	if d == DirectionSell {
		return "sell"
	}
	return "buy"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	if string(b) == "sell" {
		*d = DirectionSell
	} else {
		*d = DirectionBuy
	}
	return nil
}

// TradeExecuted records a buy or sell against a market's reserves.
// For buys AmountIn is the balance paid and AmountOut the tokens received;
// for sells AmountIn is the tokens sold and AmountOut the balance received.
type TradeExecuted struct {
	OperationID uuid.UUID   `json:"operation_id"`
	Market      uint64      `json:"market_id"`
	UserID      uuid.UUID   `json:"user_id"`
	Direction   Direction   `json:"direction"`
	Side        domain.Side `json:"side"`
	AmountIn    uint64      `json:"amount_in"`
	AmountOut   uint64      `json:"amount_out"`
	Fee         uint64      `json:"fee"`
	YesReserve  uint64      `json:"yes_reserve"`
	NoReserve   uint64      `json:"no_reserve"`
	NewPrice    float64     `json:"new_price"`
	Timestamp   time.Time   `json:"timestamp"`
}

func (t *TradeExecuted) IdempotencyKey() string {
	return t.OperationID.String()
}

func (t *TradeExecuted) EventType() EventType {
	return EventTypeTradeExecuted
}

func (t *TradeExecuted) MarketID() *uint64 {
	return marketRef(t.Market)
}
