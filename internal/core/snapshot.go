package core

import (
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/state"
	"fmt"

	"github.com/google/uuid"
)

// SnapshotState holds the in-memory state needed for a warm restart
type SnapshotState struct {
	Sequence     int64 // last committed sequence
	StateHash    [32]byte
	NextMarketID uint64
	Admin        *uuid.UUID
	Balances     map[ledger.AccountKey]int64
	Markets      []state.Market
	Positions    []state.Position
	Claims       []state.RewardClaim
	DedupKeys    []string
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &SnapshotState{
		Sequence:     e.sequence - 1,
		StateHash:    e.hasher.GetPrevHash(),
		NextMarketID: e.markets.NextID(),
		Balances:     e.balances.Snapshot(),
		Claims:       e.claims.All(),
		DedupKeys:    e.idempotency.lru.Keys(),
	}
	if e.admin != nil {
		a := *e.admin
		snap.Admin = &a
	}
	for _, m := range e.markets.All() {
		snap.Markets = append(snap.Markets, m.Clone())
	}
	for _, p := range e.positions.All() {
		snap.Positions = append(snap.Positions, *p)
	}
	return snap
}

// RestoreFromSnapshot replaces the engine state with snap. The restored
// ledger is verified before it is accepted; on error the engine is unchanged.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := ledger.NewBalanceTracker()
	balances.Restore(snap.Balances)

	markets := state.NewMarketBook()
	ms := make([]*state.Market, 0, len(snap.Markets))
	for i := range snap.Markets {
		m := snap.Markets[i].Clone()
		ms = append(ms, &m)
	}
	markets.Restore(ms, snap.NextMarketID)

	validator := ledger.NewInvariantValidator(balances)
	if err := validator.ValidateGlobalBalance(); err != nil {
		return fmt.Errorf("snapshot rejected: %w", err)
	}
	for _, m := range ms {
		if err := validator.ValidateMarketPool(m.ID, m.LiquidityPool, e.assetID); err != nil {
			return fmt.Errorf("snapshot rejected: %w", err)
		}
	}

	positions := state.NewPositionManager()
	ps := make([]*state.Position, 0, len(snap.Positions))
	for i := range snap.Positions {
		p := snap.Positions[i]
		ps = append(ps, &p)
	}
	positions.Restore(ps)

	e.balances = balances
	e.validator = validator
	e.journalGen = ledger.NewJournalGenerator(e.assetID, balances)
	e.markets = markets
	e.positions = positions
	e.claims = state.NewClaimLog()
	e.claims.Restore(snap.Claims)
	e.admin = nil
	if snap.Admin != nil {
		a := *snap.Admin
		e.admin = &a
	}
	e.sequence = snap.Sequence + 1
	e.hasher.SetPrevHash(snap.StateHash)
	e.idempotency.lru.WarmFromKeys(snap.DedupKeys)

	if e.metrics != nil {
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.MarketsOpen.Set(float64(e.markets.CountOpen()))
	}
	return nil
}

// WarmDedup loads recently processed deposit keys into the LRU.
func (e *Engine) WarmDedup(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.lru.WarmFromKeys(keys)
}
