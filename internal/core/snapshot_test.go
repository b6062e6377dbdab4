package core_test

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/domain"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// ============================================================================
// Test: Snapshot round trip
// ============================================================================

func TestSnapshot_RestoreReproducesState(t *testing.T) {
	admin := uuid.New()
	e, _ := newTestEngine(&admin)
	creator, trader := uuid.New(), uuid.New()
	id := mustMarket(t, e, creator, 2_000)
	mustDeposit(t, e, trader, 3_000)
	e.Buy(trader, id, domain.Yes, 500, 0)
	e.Buy(trader, id, domain.No, 200, 0)

	snap := e.CreateSnapshotState()
	if snap.Sequence != e.GetSequence()-1 {
		t.Errorf("snapshot sequence: got %d, want %d", snap.Sequence, e.GetSequence()-1)
	}

	restored, _ := newTestEngine(nil)
	if err := restored.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("RestoreFromSnapshot failed: %v", err)
	}

	if restored.GetSequence() != e.GetSequence() {
		t.Errorf("sequence: got %d, want %d", restored.GetSequence(), e.GetSequence())
	}
	if restored.GetStateHash() != e.GetStateHash() {
		t.Error("state hash differs after restore")
	}
	if restored.GetBalance(trader) != e.GetBalance(trader) {
		t.Errorf("balance: got %d, want %d", restored.GetBalance(trader), e.GetBalance(trader))
	}
	if !restored.IsAdmin(admin) {
		t.Error("admin not restored")
	}

	orig, _ := e.GetMarket(id)
	got, ok := restored.GetMarket(id)
	if !ok || got.Market.YesReserve != orig.Market.YesReserve || got.Market.LiquidityPool != orig.Market.LiquidityPool {
		t.Errorf("market differs: got %+v, want %+v", got.Market, orig.Market)
	}

	// The same next operation must land on the same hash in both engines
	r1, err1 := e.Sell(trader, id, domain.Yes, 10, 0)
	r2, err2 := restored.Sell(trader, id, domain.Yes, 10, 0)
	if err1 != nil || err2 != nil {
		t.Fatalf("sell failed: %v / %v", err1, err2)
	}
	if *r1 != *r2 {
		t.Errorf("receipts differ: %+v vs %+v", r1, r2)
	}
	if restored.GetStateHash() != e.GetStateHash() {
		t.Error("hash chains diverged after restore")
	}

	next, err := restored.CreateMarket(creator, "next", "", 0)
	expectErr(t, err, domain.ErrInsufficientDeposit)
	if next != 0 {
		t.Errorf("rejected create returned id %d", next)
	}
}

func TestSnapshot_DedupKeysSurviveRestore(t *testing.T) {
	e, _ := newTestEngine(nil)
	user := uuid.New()
	e.Deposit(user, "dep-1", 1_000)

	restored, persistCh := newTestEngine(nil)
	if err := restored.RestoreFromSnapshot(e.CreateSnapshotState()); err != nil {
		t.Fatalf("RestoreFromSnapshot failed: %v", err)
	}

	balance, err := restored.Deposit(user, "dep-1", 1_000)
	if err != nil || balance != 1_000 {
		t.Errorf("replayed deposit: got %d, %v", balance, err)
	}
	if len(drainOutputs(persistCh)) != 0 {
		t.Error("replayed deposit must not emit output")
	}
}

func TestSnapshot_UnbalancedRejected(t *testing.T) {
	e, _ := newTestEngine(nil)
	id := mustMarket(t, e, uuid.New(), 1_000)

	snap := e.CreateSnapshotState()
	snap.Markets[0].LiquidityPool++

	restored, _ := newTestEngine(nil)
	if err := restored.RestoreFromSnapshot(snap); err == nil {
		t.Fatal("expected pool mismatch to be rejected")
	}
	if _, ok := restored.GetMarket(id); ok {
		t.Error("rejected snapshot must leave the engine unchanged")
	}
}

// ============================================================================
// Test: Replay
// ============================================================================

func TestReplay_ReproducesLog(t *testing.T) {
	admin := uuid.New()
	e, persistCh := newTestEngine(nil)
	creator, trader := uuid.New(), uuid.New()

	if err := e.SetAdmin(admin, admin); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	id := mustMarket(t, e, creator, 1_500)
	mustDeposit(t, e, trader, 2_000)
	snap := e.CreateSnapshotState()

	e.Buy(trader, id, domain.Yes, 300, 0)
	e.Sell(trader, id, domain.Yes, 50, 0)
	if _, err := e.Resolve(admin, id, domain.Yes); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := e.Claim(trader, id); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	outputs := drainOutputs(persistCh)

	replica, replicaCh := newTestEngine(nil)
	if err := replica.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("RestoreFromSnapshot failed: %v", err)
	}
	for _, o := range outputs {
		if o.Envelope.Sequence <= snap.Sequence {
			continue
		}
		if err := replica.Replay(o.Envelope); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
	}

	if replica.GetStateHash() != e.GetStateHash() {
		t.Error("replica hash differs from source")
	}
	if replica.GetBalance(trader) != e.GetBalance(trader) {
		t.Errorf("balance: got %d, want %d", replica.GetBalance(trader), e.GetBalance(trader))
	}
	if len(drainOutputs(replicaCh)) != 0 {
		t.Error("replay must not emit outputs")
	}
	if len(replica.GetClaims(trader)) != 1 {
		t.Error("claim not replayed")
	}
}

func TestReplay_ClaimRecordsMatchLog(t *testing.T) {
	e, persistCh := newTestEngine(nil)
	creator, trader := uuid.New(), uuid.New()

	id := mustMarket(t, e, creator, 1_000)
	mustDeposit(t, e, trader, 1_000)
	if _, err := e.Buy(trader, id, domain.No, 200, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := e.Resolve(creator, id, domain.No); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	claim, err := e.Claim(trader, id)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	outputs := drainOutputs(persistCh)

	replica, _ := newTestEngine(nil)
	for _, o := range outputs {
		if err := replica.Replay(o.Envelope); err != nil {
			t.Fatalf("Replay failed at %d: %v", o.Envelope.Sequence, err)
		}
	}

	want := e.GetClaims(trader)
	got := replica.GetClaims(trader)
	if len(got) != 1 || len(want) != 1 {
		t.Fatalf("claims: got %d, want 1 on both engines (source %d)", len(got), len(want))
	}
	if got[0].ClaimID != claim.ClaimID || want[0].ClaimID != claim.ClaimID {
		t.Errorf("claim id: replayed %s, source %s, returned %s", got[0].ClaimID, want[0].ClaimID, claim.ClaimID)
	}
	if got[0].RewardAmount != want[0].RewardAmount || got[0].WinningTokens != want[0].WinningTokens {
		t.Errorf("claim amounts: got %+v, want %+v", got[0], want[0])
	}
	if !got[0].ClaimedAt.Equal(want[0].ClaimedAt) {
		t.Errorf("claimed at: got %v, want %v", got[0].ClaimedAt, want[0].ClaimedAt)
	}
}

func TestReplay_RejectsGap(t *testing.T) {
	e, persistCh := newTestEngine(nil)
	user := uuid.New()
	mustDeposit(t, e, user, 1_000)
	mustDeposit(t, e, user, 1_000)
	outputs := drainOutputs(persistCh)

	replica, _ := newTestEngine(nil)
	err := replica.Replay(outputs[1].Envelope)
	if !errors.Is(err, core.ErrReplayDiverged) {
		t.Fatalf("got error %v, want ErrReplayDiverged", err)
	}
}
