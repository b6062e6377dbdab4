package core

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/event"
	"PredictLedger/internal/state"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

const opClaim = "claim"

// Claim redeems the caller's winning tokens in a resolved market for a
// pro-rata share of the pool. The share is computed against the winning
// tokens still outstanding at claim time, so each claim sees the pool and
// supply left by earlier claimants.
func (e *Engine) Claim(caller uuid.UUID, marketID uint64) (*state.RewardClaim, error) {
	return e.claim(caller, marketID, uuid.New())
}

// claim settles under claimID. Replay passes the logged ID so the claim log
// is reproduced exactly.
func (e *Engine) claim(caller uuid.UUID, marketID uint64, claimID uuid.UUID) (*state.RewardClaim, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets.Get(marketID)
	if m == nil {
		return nil, e.reject(opClaim, domain.ErrMarketNotFound)
	}
	if m.Status != state.MarketStatusResolved {
		return nil, e.reject(opClaim, domain.ErrMarketClosed)
	}
	if m.WinningOutcome == nil {
		return nil, e.reject(opClaim, domain.ErrMarketNotFound)
	}
	winner := *m.WinningOutcome

	pos := e.positions.GetPosition(caller, marketID)
	if pos == nil {
		return nil, e.reject(opClaim, domain.ErrNoWinningTokens)
	}
	if pos.ClaimedReward {
		return nil, e.reject(opClaim, domain.ErrAlreadyClaimed)
	}
	tokens := pos.Tokens(winner)
	if tokens == 0 {
		return nil, e.reject(opClaim, domain.ErrNoWinningTokens)
	}

	supply := e.positions.WinningSupply(marketID, winner)
	if supply.IsZero() {
		return nil, e.reject(opClaim, domain.ErrInsufficientLiquidity)
	}
	reward := ComputeReward(tokens, m.LiquidityPool, supply)

	ts := e.now()
	// reward <= pool <= MaxInt64
	batch, err := e.journalGen.GenerateClaim(caller, marketID, claimID.String(), int64(reward), e.sequence, ts.UnixMicro())
	if err != nil {
		return nil, e.reject(opClaim, fmt.Errorf("%w: %v", domain.ErrInsufficientLiquidity, err))
	}

	pos.ClaimedReward = true
	pos.Debit(winner, tokens)
	m.LiquidityPool -= reward
	m.Version++

	claim := state.RewardClaim{
		ClaimID:       claimID,
		UserID:        caller,
		MarketID:      marketID,
		WinningTokens: tokens,
		RewardAmount:  reward,
		ClaimedAt:     ts,
	}
	e.claims.Append(claim)

	evt := &event.RewardClaimed{
		ClaimID:       claimID,
		Market:        marketID,
		UserID:        caller,
		WinningTokens: tokens,
		RewardAmount:  reward,
		PoolAfter:     m.LiquidityPool,
		Timestamp:     ts,
	}
	e.commit(opClaim, evt, batch, []uint64{marketID}, []uuid.UUID{caller}, ts, start)
	if e.metrics != nil && !e.replaying {
		e.metrics.ClaimsPaid.Inc()
		e.metrics.ClaimPayoutSum.Add(float64(reward))
	}

	e.log.Info().Uint64("market_id", marketID).Str("user", caller.String()).Uint64("reward", reward).Msg("reward claimed")
	return &claim, nil
}

// ComputeReward returns floor(tokens * pool / supply), never more than pool.
// supply must be non-zero.
func ComputeReward(tokens, pool uint64, supply sdkmath.Int) uint64 {
	r := sdkmath.NewIntFromUint64(tokens).Mul(sdkmath.NewIntFromUint64(pool)).Quo(supply)
	if !r.IsUint64() || r.Uint64() > pool {
		return pool
	}
	return r.Uint64()
}
