package event

import (
	"time"

	"github.com/google/uuid"
)

// DepositCredited records a deposit landing in a user's balance.
// Idempotency key: deposit_id from the deposit bridge.
type DepositCredited struct {
	DepositID  string    `json:"deposit_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     uint64    `json:"amount"`
	NewBalance uint64    `json:"new_balance"`
	Timestamp  time.Time `json:"timestamp"`
}

func (d *DepositCredited) IdempotencyKey() string {
	return d.DepositID
}

func (d *DepositCredited) EventType() EventType {
	return EventTypeDepositCredited
}

func (d *DepositCredited) MarketID() *uint64 {
	return nil // Global event
}
