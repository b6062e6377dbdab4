package core

import (
	"PredictLedger/internal/event"
	"errors"
	"fmt"
	"time"
)

// ErrReplayDiverged means a replayed operation did not reproduce the logged state.
var ErrReplayDiverged = errors.New("replay diverged from event log")

// Replay re-applies one logged operation after a snapshot restore. The
// operation runs with its logged timestamp and emits nothing; the resulting
// sequence and state hash must match the envelope. Replay must not run
// concurrently with live operations.
func (e *Engine) Replay(env *event.EventEnvelope) error {
	e.mu.Lock()
	if env.Sequence != e.sequence {
		next := e.sequence
		e.mu.Unlock()
		return fmt.Errorf("%w: expected sequence %d, log has %d", ErrReplayDiverged, next, env.Sequence)
	}
	if env.PrevHash != e.hasher.GetPrevHash() {
		e.mu.Unlock()
		return fmt.Errorf("%w: prev hash mismatch at sequence %d", ErrReplayDiverged, env.Sequence)
	}
	clock := e.clock
	ts := env.Timestamp
	e.clock = func() time.Time { return ts }
	e.replaying = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.clock = clock
		e.replaying = false
		e.mu.Unlock()
	}()

	evt, err := event.Decode(env.EventType, env.Payload)
	if err != nil {
		return err
	}
	if err := e.apply(evt); err != nil {
		return fmt.Errorf("%w: sequence %d rejected: %v", ErrReplayDiverged, env.Sequence, err)
	}

	if got := e.GetStateHash(); got != env.StateHash {
		return fmt.Errorf("%w: state hash mismatch at sequence %d", ErrReplayDiverged, env.Sequence)
	}
	return nil
}

// apply routes a decoded event back to the operation that produced it.
// Trades pass the logged output as the slippage bound so any drift fails loudly.
func (e *Engine) apply(evt event.Event) error {
	var err error
	switch p := evt.(type) {
	case *event.DepositCredited:
		_, err = e.deposit(p.UserID, p.DepositID, p.Amount, false)
	case *event.MarketCreated:
		_, err = e.CreateMarket(p.Creator, p.Title, p.Description, p.InitialAmount)
	case *event.TradeExecuted:
		if p.Direction == event.DirectionBuy {
			_, err = e.Buy(p.UserID, p.Market, p.Side, p.AmountIn, p.AmountOut)
		} else {
			_, err = e.Sell(p.UserID, p.Market, p.Side, p.AmountIn, p.AmountOut)
		}
	case *event.MarketResolved:
		_, err = e.Resolve(p.ResolvedBy, p.Market, p.WinningOutcome)
	case *event.RewardClaimed:
		_, err = e.claim(p.UserID, p.Market, p.ClaimID)
	case *event.AdminChanged:
		err = e.SetAdmin(p.ChangedBy, p.Admin)
	default:
		err = fmt.Errorf("unsupported event %T", evt)
	}
	return err
}
