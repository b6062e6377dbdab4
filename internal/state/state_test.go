package state_test

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/state"
	"testing"

	"github.com/google/uuid"
)

func TestMarketStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to state.MarketStatus
		allowed  bool
	}{
		{state.MarketStatusOpen, state.MarketStatusResolved, true},
		{state.MarketStatusOpen, state.MarketStatusFrozen, true},
		{state.MarketStatusFrozen, state.MarketStatusResolved, true},
		{state.MarketStatusResolved, state.MarketStatusOpen, false},
		{state.MarketStatusResolved, state.MarketStatusFrozen, false},
		{state.MarketStatusFrozen, state.MarketStatusOpen, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestMarketBook_AssignsIDsFromOne(t *testing.T) {
	book := state.NewMarketBook()

	first := book.Insert(&state.Market{Title: "a"})
	second := book.Insert(&state.Market{Title: "b"})

	if first != 1 || second != 2 {
		t.Errorf("ids: got %d,%d, want 1,2", first, second)
	}
	if book.Get(2).Title != "b" {
		t.Error("Get returned wrong market")
	}
	if book.Get(3) != nil {
		t.Error("unknown market should be nil")
	}
}

func TestMarketBook_RestoreRaisesNextID(t *testing.T) {
	book := state.NewMarketBook()
	book.Restore([]*state.Market{{ID: 9}, {ID: 4}}, 5)

	if book.NextID() != 10 {
		t.Errorf("next id: got %d, want 10", book.NextID())
	}
	all := book.All()
	if len(all) != 2 || all[0].ID != 4 {
		t.Errorf("All should be ordered by id, got %+v", all)
	}
}

func TestMarket_CloneIsDeep(t *testing.T) {
	outcome := domain.Yes
	m := &state.Market{ID: 1, WinningOutcome: &outcome}

	c := m.Clone()
	*c.WinningOutcome = domain.No

	if *m.WinningOutcome != domain.Yes {
		t.Error("clone shares winning outcome with original")
	}
}

func TestPositionManager_WinningSupplyExcludesBurned(t *testing.T) {
	pm := state.NewPositionManager()
	alice, bob := uuid.New(), uuid.New()

	pm.GetOrCreatePosition(alice, 1).Credit(domain.Yes, 300)
	pm.GetOrCreatePosition(bob, 1).Credit(domain.Yes, 200)
	pm.GetOrCreatePosition(bob, 1).Credit(domain.No, 50)
	pm.GetOrCreatePosition(bob, 2).Credit(domain.Yes, 1000)

	if got := pm.WinningSupply(1, domain.Yes); got.Uint64() != 500 {
		t.Errorf("yes supply: got %s, want 500", got)
	}

	pm.GetPosition(alice, 1).Debit(domain.Yes, 300)
	if got := pm.WinningSupply(1, domain.Yes); got.Uint64() != 200 {
		t.Errorf("yes supply after burn: got %s, want 200", got)
	}
}

func TestPositionManager_UserPositionsOrdered(t *testing.T) {
	pm := state.NewPositionManager()
	user := uuid.New()
	pm.GetOrCreatePosition(user, 3)
	pm.GetOrCreatePosition(user, 1)
	pm.GetOrCreatePosition(uuid.New(), 2)

	got := pm.UserPositions(user)
	if len(got) != 2 || got[0].MarketID != 1 || got[1].MarketID != 3 {
		t.Errorf("unexpected positions: %+v", got)
	}
}

func TestClaimLog_ForUser(t *testing.T) {
	log := state.NewClaimLog()
	user := uuid.New()
	log.Append(state.RewardClaim{UserID: user, MarketID: 1, RewardAmount: 10})
	log.Append(state.RewardClaim{UserID: uuid.New(), MarketID: 1, RewardAmount: 20})
	log.Append(state.RewardClaim{UserID: user, MarketID: 2, RewardAmount: 30})

	got := log.ForUser(user)
	if len(got) != 2 || got[1].RewardAmount != 30 {
		t.Errorf("unexpected claims: %+v", got)
	}
}
