// Package math holds the constant-product pricing curve shared by quoting and
// trade execution. All amounts are unsigned smallest units; intermediate
// products are computed in a widened integer domain.
package math

import (
	"PredictLedger/internal/domain"

	sdkmath "cosmossdk.io/math"
)

const (
	FeeBps         = 3
	FeeDenominator = 1000

	// InitialReserve seeds both sides of a new market.
	InitialReserve uint64 = 500
	// MinDeposit is the smallest deposit and the smallest market seed.
	MinDeposit uint64 = 1000
	// ProbeTradeSize is the buy used to report price impact.
	ProbeTradeSize uint64 = 100
)

// BuyResult is the full effect of a buy on a reserve pair.
type BuyResult struct {
	TokensOut  uint64
	AfterFee   uint64 // amount drained from the opposite reserve
	Fee        uint64 // input * FeeBps / FeeDenominator
	YesReserve uint64
	NoReserve  uint64
}

// SellResult is the full effect of a sell on a reserve pair.
type SellResult struct {
	Gross      uint64 // curve output before fee
	Net        uint64 // paid to the seller
	Fee        uint64 // Gross - Net
	YesReserve uint64
	NoReserve  uint64
}

// AfterFee returns the part of a buy input that enters the curve.
func AfterFee(input uint64) uint64 {
	return MulDiv(input, FeeDenominator-FeeBps, FeeDenominator)
}

// FeeOn returns the fee retained from a buy input.
func FeeOn(input uint64) uint64 {
	return MulDiv(input, FeeBps, FeeDenominator)
}

// MulDiv returns floor(a*b/c) computed without intermediate overflow.
// The result saturates at the uint64 maximum; c must be non-zero.
func MulDiv(a, b, c uint64) uint64 {
	q := sdkmath.NewIntFromUint64(a).Mul(sdkmath.NewIntFromUint64(b)).Quo(sdkmath.NewIntFromUint64(c))
	if !q.IsUint64() {
		return ^uint64(0)
	}
	return q.Uint64()
}

// QuoteBuy returns the tokens of side received for input.
func QuoteBuy(yes, no, input uint64, side domain.Side) (uint64, error) {
	r, err := SimulateBuy(yes, no, input, side)
	if err != nil {
		return 0, err
	}
	return r.TokensOut, nil
}

// SimulateBuy applies a buy to the reserve pair. The opposite reserve is
// drained by the fee-adjusted input and the bought side grows so that the
// pre-trade product is held on the drained side.
func SimulateBuy(yes, no, input uint64, side domain.Side) (BuyResult, error) {
	if yes == 0 || no == 0 {
		return BuyResult{}, domain.ErrInsufficientLiquidity
	}

	target, drained := split(yes, no, side)
	afterFee := AfterFee(input)
	if afterFee >= drained {
		return BuyResult{}, domain.ErrInsufficientLiquidity
	}

	k := product(yes, no)
	newDrained := drained - afterFee
	nt := k.Quo(sdkmath.NewIntFromUint64(newDrained))
	if !nt.IsUint64() {
		return BuyResult{}, domain.ErrInvalidAmount
	}
	newTarget := nt.Uint64()
	if newTarget <= target {
		return BuyResult{}, domain.ErrInvalidAmount
	}

	r := BuyResult{
		TokensOut: newTarget - target,
		AfterFee:  afterFee,
		Fee:       FeeOn(input),
	}
	r.YesReserve, r.NoReserve = join(newTarget, newDrained, side)
	return r, nil
}

// QuoteSell returns the net payout for selling tokensIn of side.
func QuoteSell(yes, no, tokensIn uint64, side domain.Side) (uint64, error) {
	r, err := SimulateSell(yes, no, tokensIn, side)
	if err != nil {
		return 0, err
	}
	return r.Net, nil
}

// SimulateSell applies a sell to the reserve pair. The sold reserve shrinks
// by tokensIn, the opposite reserve grows by the gross curve output, and the
// fee is taken from the output.
func SimulateSell(yes, no, tokensIn uint64, side domain.Side) (SellResult, error) {
	if yes == 0 || no == 0 {
		return SellResult{}, domain.ErrInsufficientLiquidity
	}

	sold, opposite := split(yes, no, side)
	if tokensIn >= sold {
		return SellResult{}, domain.ErrInvalidAmount
	}
	newSold := sold - tokensIn
	if newSold == 0 {
		return SellResult{}, domain.ErrInsufficientLiquidity
	}

	k := product(yes, no)
	grown := k.Quo(sdkmath.NewIntFromUint64(newSold))
	if !grown.IsUint64() {
		return SellResult{}, domain.ErrInvalidAmount
	}
	newOpposite := grown.Uint64()
	gross := newOpposite - opposite

	net := MulDiv(gross, FeeDenominator-FeeBps, FeeDenominator)
	r := SellResult{
		Gross: gross,
		Net:   net,
		Fee:   gross - net,
	}
	r.YesReserve, r.NoReserve = join(newSold, newOpposite, side)
	return r, nil
}

// PriceOf returns the marginal price of side in [0, 1]. The two sides of a
// reserve pair always sum to exactly 1; an empty pair prices both at 0.5.
func PriceOf(yes, no uint64, side domain.Side) float64 {
	total := float64(yes) + float64(no)
	if yes == 0 && no == 0 {
		return 0.5
	}
	yesPrice := float64(no) / total
	if side == domain.Yes {
		return yesPrice
	}
	return 1 - yesPrice
}

// PriceImpact reports the absolute percentage move of the YES price caused by
// a hypothetical YES buy of probe. It is display-only and returns 0 when the
// reserves are empty or the buy cannot be quoted. An unquotable buy would
// empty the NO reserve with its after-fee input, so no post-trade price
// exists to measure against.
func PriceImpact(yes, no, probe uint64) float64 {
	if yes == 0 || no == 0 {
		return 0
	}
	r, err := SimulateBuy(yes, no, probe, domain.Yes)
	if err != nil {
		return 0
	}
	before := PriceOf(yes, no, domain.Yes)
	after := float64(no-r.AfterFee) / (float64(yes) + float64(r.TokensOut) + float64(no-r.AfterFee))
	impact := (after - before) / before * 100
	if impact < 0 {
		impact = -impact
	}
	return impact
}

// split returns (reserve of side, reserve of the opposite side).
func split(yes, no uint64, side domain.Side) (uint64, uint64) {
	if side == domain.Yes {
		return yes, no
	}
	return no, yes
}

// join is the inverse of split.
func join(own, opposite uint64, side domain.Side) (yes, no uint64) {
	if side == domain.Yes {
		return own, opposite
	}
	return opposite, own
}

func product(yes, no uint64) sdkmath.Int {
	return sdkmath.NewIntFromUint64(yes).Mul(sdkmath.NewIntFromUint64(no))
}
