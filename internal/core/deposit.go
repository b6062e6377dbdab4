package core

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/event"
	fpmath "PredictLedger/internal/math"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const opDeposit = "deposit"

var depositEventType = event.EventTypeDepositCredited.String()

// Deposit credits amount to caller's balance and returns the new balance.
// depositID makes the call idempotent: a repeated ID is a no-op that returns
// the current balance. An empty depositID is replaced by a fresh one.
func (e *Engine) Deposit(caller uuid.UUID, depositID string, amount uint64) (uint64, error) {
	return e.deposit(caller, depositID, amount, true)
}

// deposit credits the balance. checkPersisted consults the database dedup
// tier; replay skips it since the deposit being replayed is in the log.
func (e *Engine) deposit(caller uuid.UUID, depositID string, amount uint64, checkPersisted bool) (uint64, error) {
	start := time.Now()

	if amount < fpmath.MinDeposit {
		return 0, e.reject(opDeposit, domain.ErrInvalidAmount)
	}
	ledgerAmount, err := toLedgerAmount(amount)
	if err != nil {
		return 0, e.reject(opDeposit, err)
	}
	if depositID == "" {
		depositID = uuid.NewString()
	}

	var seen bool
	if checkPersisted {
		var dbErr error
		seen, dbErr = e.idempotency.SeenPersisted(depositEventType, depositID)
		if dbErr != nil {
			e.log.Warn().Err(dbErr).Str("deposit_id", depositID).Msg("deposit dedup lookup failed")
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if seen || e.idempotency.SeenLocally(depositEventType, depositID) {
		e.idempotency.MarkProcessed(depositEventType, depositID)
		return e.balanceOf(caller), nil
	}

	ts := e.now()
	batch, err := e.journalGen.GenerateDeposit(caller, depositID, ledgerAmount, e.sequence, ts.UnixMicro())
	if err != nil {
		return 0, e.reject(opDeposit, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err))
	}

	evt := &event.DepositCredited{
		DepositID:  depositID,
		UserID:     caller,
		Amount:     amount,
		NewBalance: e.balanceOf(caller) + amount,
		Timestamp:  ts,
	}
	e.commit(opDeposit, evt, batch, nil, []uuid.UUID{caller}, ts, start)
	e.idempotency.MarkProcessed(depositEventType, depositID)

	return e.balanceOf(caller), nil
}
