package core_test

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/domain"
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/state"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// restoreResolvedMarket loads market 1, resolved to outcome, holding pool
// and the given positions. The pool is funded from the external account.
func restoreResolvedMarket(t *testing.T, e *core.Engine, pool uint64, outcome domain.Side, positions []state.Position) {
	t.Helper()
	asset := ledger.SettlementAssetID()
	winner := outcome

	snap := &core.SnapshotState{
		StateHash:    core.GenesisHash(),
		NextMarketID: 2,
		Balances: map[ledger.AccountKey]int64{
			ledger.NewMarketAccountKey(1, ledger.SubTypeMarketPool, asset):      int64(pool),
			ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, asset): -int64(pool),
		},
		Markets: []state.Market{{
			ID:             1,
			Title:          "restored",
			YesReserve:     500,
			NoReserve:      500,
			LiquidityPool:  pool,
			Status:         state.MarketStatusResolved,
			WinningOutcome: &winner,
		}},
	}
	for _, p := range positions {
		p.MarketID = 1
		snap.Positions = append(snap.Positions, p)
	}
	if err := e.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
}

// ============================================================================
// Test: Reward computation
// ============================================================================

func TestComputeReward(t *testing.T) {
	tests := []struct {
		name   string
		tokens uint64
		pool   uint64
		supply uint64
		want   uint64
	}{
		{"sole holder takes pool", 500, 5_000, 500, 5_000},
		{"pro rata", 300, 1_000, 500, 600},
		{"floors", 1, 10, 3, 3},
		{"capped at pool", 10, 100, 5, 100},
		{"large values", 1 << 62, 1 << 62, 1 << 62, 1 << 62},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ComputeReward(tt.tokens, tt.pool, sdkmath.NewIntFromUint64(tt.supply))
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Test: Claim
// ============================================================================

func TestClaim_SoleWinnerTakesPool(t *testing.T) {
	e, _ := newTestEngine(nil)
	winner, loser := uuid.New(), uuid.New()
	restoreResolvedMarket(t, e, 5_000, domain.Yes, []state.Position{
		{UserID: winner, YesTokens: 500},
		{UserID: loser, NoTokens: 700},
	})

	c, err := e.Claim(winner, 1)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if c.RewardAmount != 5_000 || c.WinningTokens != 500 {
		t.Errorf("unexpected claim: %+v", c)
	}
	if e.GetBalance(winner) != 5_000 {
		t.Errorf("balance: got %d, want 5000", e.GetBalance(winner))
	}

	s, _ := e.GetMarket(1)
	if s.Market.LiquidityPool != 0 {
		t.Errorf("pool should be drained, got %d", s.Market.LiquidityPool)
	}
	pos, _ := e.GetPosition(winner, 1)
	if !pos.ClaimedReward || pos.YesTokens != 0 {
		t.Errorf("position should be burned and flagged: %+v", pos)
	}
	if claims := e.GetClaims(winner); len(claims) != 1 || claims[0].ClaimID != c.ClaimID {
		t.Errorf("claim history: %+v", claims)
	}

	_, err = e.Claim(loser, 1)
	expectErr(t, err, domain.ErrNoWinningTokens)

	if err := e.VerifyLedger(); err != nil {
		t.Fatalf("ledger invalid: %v", err)
	}
}

func TestClaim_ProRataAgainstRemainingSupply(t *testing.T) {
	e, _ := newTestEngine(nil)
	a, b := uuid.New(), uuid.New()
	restoreResolvedMarket(t, e, 10, domain.No, []state.Position{
		{UserID: a, NoTokens: 1},
		{UserID: b, NoTokens: 2},
	})

	// a: 1*10/3 = 3, then b: 2*7/2 = 7
	ca, err := e.Claim(a, 1)
	if err != nil {
		t.Fatalf("Claim a failed: %v", err)
	}
	cb, err := e.Claim(b, 1)
	if err != nil {
		t.Fatalf("Claim b failed: %v", err)
	}
	if ca.RewardAmount != 3 || cb.RewardAmount != 7 {
		t.Errorf("rewards: got %d/%d, want 3/7", ca.RewardAmount, cb.RewardAmount)
	}

	s, _ := e.GetMarket(1)
	if s.Market.LiquidityPool != 0 {
		t.Errorf("pool should be fully paid out, got %d", s.Market.LiquidityPool)
	}
}

func TestClaim_Rejections(t *testing.T) {
	e, _ := newTestEngine(nil)
	winner := uuid.New()
	restoreResolvedMarket(t, e, 1_000, domain.Yes, []state.Position{
		{UserID: winner, YesTokens: 10},
	})

	_, err := e.Claim(winner, 9)
	expectErr(t, err, domain.ErrMarketNotFound)

	_, err = e.Claim(uuid.New(), 1)
	expectErr(t, err, domain.ErrNoWinningTokens)

	if _, err := e.Claim(winner, 1); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if e.GetBalance(winner) != 1_000 {
		t.Fatalf("balance after first claim: got %d, want 1000", e.GetBalance(winner))
	}
	before := viewOf(e, 1, winner)
	_, err = e.Claim(winner, 1)
	expectErr(t, err, domain.ErrAlreadyClaimed)
	expectUnchanged(t, e, 1, winner, before)
	if n := len(e.GetClaims(winner)); n != 1 {
		t.Errorf("claim history: got %d entries, want 1", n)
	}
}

func TestClaim_OpenMarketRejected(t *testing.T) {
	e, _ := newTestEngine(nil)
	id := mustMarket(t, e, uuid.New(), 1_000)
	trader := uuid.New()
	mustDeposit(t, e, trader, 1_000)
	e.Buy(trader, id, domain.Yes, 100, 0)

	_, err := e.Claim(trader, id)
	expectErr(t, err, domain.ErrMarketClosed)
}

func TestClaim_EndToEnd(t *testing.T) {
	e, _ := newTestEngine(nil)
	creator := uuid.New()
	id := mustMarket(t, e, creator, 1_000)

	yes1, yes2, no := uuid.New(), uuid.New(), uuid.New()
	for _, u := range []uuid.UUID{yes1, yes2, no} {
		mustDeposit(t, e, u, 1_000)
	}
	e.Buy(yes1, id, domain.Yes, 200, 0)
	e.Buy(no, id, domain.No, 300, 0)
	e.Buy(yes2, id, domain.Yes, 100, 0)

	if _, err := e.Resolve(creator, id, domain.Yes); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	before, _ := e.GetMarket(id)
	pool := before.Market.LiquidityPool

	c1, err := e.Claim(yes1, id)
	if err != nil {
		t.Fatalf("claim yes1 failed: %v", err)
	}
	c2, err := e.Claim(yes2, id)
	if err != nil {
		t.Fatalf("claim yes2 failed: %v", err)
	}
	_, err = e.Claim(no, id)
	expectErr(t, err, domain.ErrNoWinningTokens)

	// The last winner claims against the remaining supply, so nothing is left
	if c1.RewardAmount+c2.RewardAmount != pool {
		t.Errorf("payouts %d+%d, want pool %d", c1.RewardAmount, c2.RewardAmount, pool)
	}
	if err := e.VerifyLedger(); err != nil {
		t.Fatalf("ledger invalid: %v", err)
	}
}
