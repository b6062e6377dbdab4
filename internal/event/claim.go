package event

import (
	"time"

	"github.com/google/uuid"
)

// RewardClaimed records a settled claim. Idempotency key: claim_id.
type RewardClaimed struct {
	ClaimID       uuid.UUID `json:"claim_id"`
	Market        uint64    `json:"market_id"`
	UserID        uuid.UUID `json:"user_id"`
	WinningTokens uint64    `json:"winning_tokens"`
	RewardAmount  uint64    `json:"reward_amount"`
	PoolAfter     uint64    `json:"pool_after"`
	Timestamp     time.Time `json:"timestamp"`
}

func (r *RewardClaimed) IdempotencyKey() string {
	return r.ClaimID.String()
}

func (r *RewardClaimed) EventType() EventType {
	return EventTypeRewardClaimed
}

func (r *RewardClaimed) MarketID() *uint64 {
	return marketRef(r.Market)
}
