package core

import (
	"PredictLedger/internal/domain"
	fpmath "PredictLedger/internal/math"
	"PredictLedger/internal/state"

	"github.com/google/uuid"
)

// MarketSummary is a market with its derived prices
type MarketSummary struct {
	Market      state.Market `json:"market"`
	YesPrice    float64      `json:"yes_price"`
	NoPrice     float64      `json:"no_price"`
	TotalVolume uint64       `json:"total_volume"` // escrowed pool
	PriceImpact float64      `json:"price_impact"` // percent, for a ProbeTradeSize YES buy
}

func summarize(m *state.Market) MarketSummary {
	return MarketSummary{
		Market:      m.Clone(),
		YesPrice:    fpmath.PriceOf(m.YesReserve, m.NoReserve, domain.Yes),
		NoPrice:     fpmath.PriceOf(m.YesReserve, m.NoReserve, domain.No),
		TotalVolume: m.LiquidityPool,
		PriceImpact: fpmath.PriceImpact(m.YesReserve, m.NoReserve, fpmath.ProbeTradeSize),
	}
}

// GetMarket returns one market summary
func (e *Engine) GetMarket(marketID uint64) (MarketSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets.Get(marketID)
	if m == nil {
		return MarketSummary{}, false
	}
	return summarize(m), true
}

// ListMarkets returns every market ordered by ID
func (e *Engine) ListMarkets() []MarketSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := e.markets.All()
	out := make([]MarketSummary, 0, len(all))
	for _, m := range all {
		out = append(out, summarize(m))
	}
	return out
}

// Price returns the marginal price of side in a market
func (e *Engine) Price(marketID uint64, side domain.Side) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets.Get(marketID)
	if m == nil {
		return 0, domain.ErrMarketNotFound
	}
	return fpmath.PriceOf(m.YesReserve, m.NoReserve, side), nil
}

// GetPosition returns the caller's position in a market
func (e *Engine) GetPosition(caller uuid.UUID, marketID uint64) (state.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions.GetPosition(caller, marketID)
	if pos == nil {
		return state.Position{}, false
	}
	return *pos, true
}

// GetPositions returns every position of the caller ordered by market
func (e *Engine) GetPositions(caller uuid.UUID) []state.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps := e.positions.UserPositions(caller)
	out := make([]state.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, *p)
	}
	return out
}

// GetBalance returns a user's balance; unknown users have zero
func (e *Engine) GetBalance(user uuid.UUID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceOf(user)
}

// GetClaims returns the caller's reward claims in claim order
func (e *Engine) GetClaims(caller uuid.UUID) []state.RewardClaim {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.ForUser(caller)
}
