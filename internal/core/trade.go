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
	opBuy  = "buy"
	opSell = "sell"
)

// TradeReceipt describes an executed (or quoted) trade.
// For buys TokensReceived is outcome tokens and AmountPaid is balance;
// for sells TokensReceived is balance and AmountPaid is outcome tokens.
type TradeReceipt struct {
	MarketID       uint64      `json:"market_id"`
	Side           domain.Side `json:"side"`
	TokensReceived uint64      `json:"tokens_received"`
	AmountPaid     uint64      `json:"amount_paid"`
	FeePaid        uint64      `json:"fee_paid"`
	NewPrice       float64     `json:"new_price"`
}

// Buy spends inputAmount of the caller's balance on side tokens of a market.
// The trade fails with ErrSlippageExceeded if it would yield fewer than minTokensOut.
func (e *Engine) Buy(caller uuid.UUID, marketID uint64, side domain.Side, inputAmount, minTokensOut uint64) (*TradeReceipt, error) {
	start := time.Now()

	if inputAmount == 0 || !side.Valid() {
		return nil, e.reject(opBuy, domain.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.balanceOf(caller) < inputAmount {
		return nil, e.reject(opBuy, domain.ErrInsufficientDeposit)
	}

	m, err := e.openMarket(marketID)
	if err != nil {
		return nil, e.reject(opBuy, err)
	}

	r, err := fpmath.SimulateBuy(m.YesReserve, m.NoReserve, inputAmount, side)
	if err != nil {
		return nil, e.reject(opBuy, err)
	}
	if r.TokensOut < minTokensOut {
		return nil, e.reject(opBuy, domain.ErrSlippageExceeded)
	}

	pos := e.positions.GetPosition(caller, marketID)
	if pos != nil && pos.Tokens(side) > ^uint64(0)-r.TokensOut {
		return nil, e.reject(opBuy, domain.ErrInvalidAmount)
	}

	toPool := inputAmount - r.Fee
	ts := e.now()
	opID := uuid.New()
	// inputAmount <= balance, so both legs fit the ledger's int64 domain
	batch, err := e.journalGen.GenerateBuy(caller, marketID, opID.String(), int64(toPool), int64(r.Fee), e.sequence, ts.UnixMicro())
	if err != nil {
		return nil, e.reject(opBuy, fmt.Errorf("%w: %v", domain.ErrInsufficientDeposit, err))
	}

	m.YesReserve, m.NoReserve = r.YesReserve, r.NoReserve
	m.LiquidityPool += toPool
	m.TotalFeesCollected += r.Fee
	m.Version++
	if pos == nil {
		pos = e.positions.GetOrCreatePosition(caller, marketID)
	}
	pos.Credit(side, r.TokensOut)

	receipt := &TradeReceipt{
		MarketID:       marketID,
		Side:           side,
		TokensReceived: r.TokensOut,
		AmountPaid:     inputAmount,
		FeePaid:        r.Fee,
		NewPrice:       fpmath.PriceOf(m.YesReserve, m.NoReserve, side),
	}

	evt := tradeEvent(opID, caller, m, event.DirectionBuy, side, inputAmount, r.TokensOut, r.Fee, receipt.NewPrice, ts)
	e.commit(opBuy, evt, batch, []uint64{marketID}, []uuid.UUID{caller}, ts, start)
	e.recordTrade(event.DirectionBuy, side, inputAmount, r.Fee)

	return receipt, nil
}

// Sell returns tokenAmount side tokens to the curve for balance.
// The trade fails with ErrSlippageExceeded if the payout is below minPayout.
func (e *Engine) Sell(caller uuid.UUID, marketID uint64, side domain.Side, tokenAmount, minPayout uint64) (*TradeReceipt, error) {
	start := time.Now()

	if tokenAmount == 0 || !side.Valid() {
		return nil, e.reject(opSell, domain.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions.GetPosition(caller, marketID)
	if pos == nil || pos.Tokens(side) < tokenAmount {
		return nil, e.reject(opSell, domain.ErrInvalidAmount)
	}

	m, err := e.openMarket(marketID)
	if err != nil {
		return nil, e.reject(opSell, err)
	}

	r, err := fpmath.SimulateSell(m.YesReserve, m.NoReserve, tokenAmount, side)
	if err != nil {
		return nil, e.reject(opSell, err)
	}
	if r.Net < minPayout {
		return nil, e.reject(opSell, domain.ErrSlippageExceeded)
	}
	// The pool backs every payout; the ledger never mints balance.
	if r.Net > m.LiquidityPool {
		return nil, e.reject(opSell, domain.ErrInsufficientLiquidity)
	}

	ts := e.now()
	opID := uuid.New()
	// r.Net <= pool <= MaxInt64
	batch, err := e.journalGen.GenerateSell(caller, marketID, opID.String(), int64(r.Net), e.sequence, ts.UnixMicro())
	if err != nil {
		return nil, e.reject(opSell, fmt.Errorf("%w: %v", domain.ErrInsufficientLiquidity, err))
	}

	m.YesReserve, m.NoReserve = r.YesReserve, r.NoReserve
	m.LiquidityPool -= r.Net
	m.TotalFeesCollected += r.Fee
	m.Version++
	pos.Debit(side, tokenAmount)

	receipt := &TradeReceipt{
		MarketID:       marketID,
		Side:           side,
		TokensReceived: r.Net,
		AmountPaid:     tokenAmount,
		FeePaid:        r.Fee,
		NewPrice:       fpmath.PriceOf(m.YesReserve, m.NoReserve, side),
	}

	evt := tradeEvent(opID, caller, m, event.DirectionSell, side, tokenAmount, r.Net, r.Fee, receipt.NewPrice, ts)
	e.commit(opSell, evt, batch, []uint64{marketID}, []uuid.UUID{caller}, ts, start)
	e.recordTrade(event.DirectionSell, side, r.Net, r.Fee)

	return receipt, nil
}

// QuoteBuy returns the receipt Buy would produce now, without trading.
func (e *Engine) QuoteBuy(marketID uint64, side domain.Side, inputAmount uint64) (*TradeReceipt, error) {
	if !side.Valid() {
		return nil, domain.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.openMarket(marketID)
	if err != nil {
		return nil, err
	}
	r, err := fpmath.SimulateBuy(m.YesReserve, m.NoReserve, inputAmount, side)
	if err != nil {
		return nil, err
	}
	return &TradeReceipt{
		MarketID:       marketID,
		Side:           side,
		TokensReceived: r.TokensOut,
		AmountPaid:     inputAmount,
		FeePaid:        r.Fee,
		NewPrice:       fpmath.PriceOf(r.YesReserve, r.NoReserve, side),
	}, nil
}

// QuoteSell returns the receipt Sell would produce now, without trading.
func (e *Engine) QuoteSell(marketID uint64, side domain.Side, tokenAmount uint64) (*TradeReceipt, error) {
	if !side.Valid() {
		return nil, domain.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.openMarket(marketID)
	if err != nil {
		return nil, err
	}
	r, err := fpmath.SimulateSell(m.YesReserve, m.NoReserve, tokenAmount, side)
	if err != nil {
		return nil, err
	}
	return &TradeReceipt{
		MarketID:       marketID,
		Side:           side,
		TokensReceived: r.Net,
		AmountPaid:     tokenAmount,
		FeePaid:        r.Fee,
		NewPrice:       fpmath.PriceOf(r.YesReserve, r.NoReserve, side),
	}, nil
}

// openMarket returns the market if it exists and accepts trades
func (e *Engine) openMarket(marketID uint64) (*state.Market, error) {
	m := e.markets.Get(marketID)
	if m == nil {
		return nil, domain.ErrMarketNotFound
	}
	if !m.IsOpen() {
		return nil, domain.ErrMarketClosed
	}
	return m, nil
}

func tradeEvent(opID, user uuid.UUID, m *state.Market, dir event.Direction, side domain.Side, in, out, fee uint64, price float64, ts time.Time) *event.TradeExecuted {
	return &event.TradeExecuted{
		OperationID: opID,
		Market:      m.ID,
		UserID:      user,
		Direction:   dir,
		Side:        side,
		AmountIn:    in,
		AmountOut:   out,
		Fee:         fee,
		YesReserve:  m.YesReserve,
		NoReserve:   m.NoReserve,
		NewPrice:    price,
		Timestamp:   ts,
	}
}

func (e *Engine) recordTrade(dir event.Direction, side domain.Side, volume, fee uint64) {
	if e.metrics == nil || e.replaying {
		return
	}
	e.metrics.TradeVolume.WithLabelValues(dir.String(), side.String()).Add(float64(volume))
	e.metrics.TradeFees.WithLabelValues(dir.String()).Add(float64(fee))
}
