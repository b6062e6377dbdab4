package state

import (
	"time"

	"github.com/google/uuid"
)

// RewardClaim records one settled claim. Claims are never modified.
type RewardClaim struct {
	ClaimID       uuid.UUID `json:"claim_id"`
	UserID        uuid.UUID `json:"user_id"`
	MarketID      uint64    `json:"market_id"`
	WinningTokens uint64    `json:"winning_tokens"`
	RewardAmount  uint64    `json:"reward_amount"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// ClaimLog is the append-only record of reward claims
type ClaimLog struct {
	claims []RewardClaim
}

func NewClaimLog() *ClaimLog {
	return &ClaimLog{}
}

func (l *ClaimLog) Append(c RewardClaim) {
	l.claims = append(l.claims, c)
}

// ForUser returns a user's claims in claim order
func (l *ClaimLog) ForUser(userID uuid.UUID) []RewardClaim {
	var out []RewardClaim
	for _, c := range l.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// All returns a copy of the log
func (l *ClaimLog) All() []RewardClaim {
	out := make([]RewardClaim, len(l.claims))
	copy(out, l.claims)
	return out
}

func (l *ClaimLog) Len() int {
	return len(l.claims)
}

// Restore replaces the log
func (l *ClaimLog) Restore(claims []RewardClaim) {
	l.claims = make([]RewardClaim, len(claims))
	copy(l.claims, claims)
}
