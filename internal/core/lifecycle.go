package core

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/event"
	fpmath "PredictLedger/internal/math"
	"PredictLedger/internal/state"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	opCreateMarket = "create_market"
	opResolve      = "resolve"
	opSetAdmin     = "set_admin"
)

// Resolution confirms a market resolution
type Resolution struct {
	MarketID       uint64      `json:"market_id"`
	WinningOutcome domain.Side `json:"winning_outcome"`
	LiquidityPool  uint64      `json:"liquidity_pool"`
	ResolvedAt     time.Time   `json:"resolved_at"`
}

// CreateMarket opens a market seeded with initialAmount from the caller's
// balance. The caller becomes the market's admin.
func (e *Engine) CreateMarket(caller uuid.UUID, title, description string, initialAmount uint64) (uint64, error) {
	start := time.Now()

	if initialAmount < fpmath.MinDeposit {
		return 0, e.reject(opCreateMarket, domain.ErrInsufficientDeposit)
	}
	seed, err := toLedgerAmount(initialAmount)
	if err != nil {
		return 0, e.reject(opCreateMarket, domain.ErrInsufficientDeposit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.balanceOf(caller) < initialAmount {
		return 0, e.reject(opCreateMarket, domain.ErrInsufficientDeposit)
	}

	ts := e.now()
	id := e.markets.NextID()
	opID := uuid.New()
	batch, err := e.journalGen.GenerateMarketSeed(caller, id, opID.String(), seed, e.sequence, ts.UnixMicro())
	if err != nil {
		return 0, e.reject(opCreateMarket, fmt.Errorf("%w: %v", domain.ErrInsufficientDeposit, err))
	}

	m := &state.Market{
		Title:         title,
		Description:   description,
		YesReserve:    fpmath.InitialReserve,
		NoReserve:     fpmath.InitialReserve,
		LiquidityPool: initialAmount,
		Status:        state.MarketStatusOpen,
		Creator:       caller,
		Admin:         caller,
		CreatedAt:     ts,
	}
	e.markets.Insert(m)

	evt := &event.MarketCreated{
		OperationID:   opID,
		Market:        id,
		Title:         title,
		Description:   description,
		Creator:       caller,
		InitialAmount: initialAmount,
		YesReserve:    m.YesReserve,
		NoReserve:     m.NoReserve,
		Timestamp:     ts,
	}
	e.commit(opCreateMarket, evt, batch, []uint64{id}, []uuid.UUID{caller}, ts, start)

	e.log.Info().Uint64("market_id", id).Str("creator", caller.String()).Uint64("initial_amount", initialAmount).Msg("market created")
	return id, nil
}

// Resolve records the winning outcome of an open market. The caller must be
// the global admin or the market's admin.
func (e *Engine) Resolve(caller uuid.UUID, marketID uint64, outcome domain.Side) (*Resolution, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets.Get(marketID)
	isGlobalAdmin := e.admin != nil && *e.admin == caller
	isMarketAdmin := m != nil && m.Admin == caller
	if !isGlobalAdmin && !isMarketAdmin {
		return nil, e.reject(opResolve, domain.ErrUnauthorized)
	}
	if m == nil {
		return nil, e.reject(opResolve, domain.ErrMarketNotFound)
	}
	if !m.IsOpen() || !m.Status.CanTransitionTo(state.MarketStatusResolved) {
		return nil, e.reject(opResolve, domain.ErrMarketClosed)
	}
	if !outcome.Valid() {
		return nil, e.reject(opResolve, domain.ErrInvalidAmount)
	}

	ts := e.now()
	opID := uuid.New()
	batch := e.journalGen.GenerateEmpty(opID.String(), e.sequence, ts.UnixMicro())

	winner := outcome
	m.Status = state.MarketStatusResolved
	m.WinningOutcome = &winner
	m.ResolvedAt = &ts
	m.Version++

	evt := &event.MarketResolved{
		OperationID:    opID,
		Market:         marketID,
		WinningOutcome: outcome,
		ResolvedBy:     caller,
		LiquidityPool:  m.LiquidityPool,
		Timestamp:      ts,
	}
	e.commit(opResolve, evt, batch, []uint64{marketID}, nil, ts, start)
	if e.metrics != nil && !e.replaying {
		e.metrics.MarketsResolved.WithLabelValues(outcome.String()).Inc()
	}

	e.log.Info().Uint64("market_id", marketID).Str("outcome", outcome.String()).Str("resolved_by", caller.String()).Msg("market resolved")
	return &Resolution{
		MarketID:       marketID,
		WinningOutcome: outcome,
		LiquidityPool:  m.LiquidityPool,
		ResolvedAt:     ts,
	}, nil
}

// SetAdmin replaces the global admin. Allowed when no admin is set yet or
// when the caller is the current admin.
func (e *Engine) SetAdmin(caller, newAdmin uuid.UUID) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.admin != nil && *e.admin != caller {
		return e.reject(opSetAdmin, domain.ErrUnauthorized)
	}

	ts := e.now()
	opID := uuid.New()
	batch := e.journalGen.GenerateEmpty(opID.String(), e.sequence, ts.UnixMicro())

	var previous *uuid.UUID
	if e.admin != nil {
		p := *e.admin
		previous = &p
	}
	admin := newAdmin
	e.admin = &admin

	evt := &event.AdminChanged{
		OperationID: opID,
		Previous:    previous,
		Admin:       newAdmin,
		ChangedBy:   caller,
		Timestamp:   ts,
	}
	e.commit(opSetAdmin, evt, batch, nil, nil, ts, start)

	e.log.Info().Str("admin", newAdmin.String()).Str("changed_by", caller.String()).Msg("global admin changed")
	return nil
}

// Admin returns the global admin, if one is set
func (e *Engine) Admin() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.admin == nil {
		return uuid.Nil, false
	}
	return *e.admin, true
}

// IsAdmin reports whether caller is the global admin
func (e *Engine) IsAdmin(caller uuid.UUID) bool {
	admin, ok := e.Admin()
	return ok && admin == caller
}
