package ledger_test

import (
	"PredictLedger/internal/ledger"
	"testing"

	"github.com/google/uuid"
)

func depositJournal(userID uuid.UUID, amount int64) ledger.Journal {
	assetID := ledger.SettlementAssetID()
	return ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(userID, assetID),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID),
		AssetID:       assetID,
		Amount:        amount,
	}
}

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewUserAccountKey(userID, ledger.SettlementAssetID())

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:balance:ICP"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_MarketPath(t *testing.T) {
	key := ledger.NewMarketAccountKey(42, ledger.SubTypeMarketPool, ledger.SettlementAssetID())

	if path := key.AccountPath(); path != "market:42:pool:ICP" {
		t.Errorf("got %q, want %q", path, "market:42:pool:ICP")
	}
	if key.MarketID() != 42 {
		t.Errorf("MarketID: got %d, want 42", key.MarketID())
	}
}

func TestAccountKey_MarketPoolAndFeesDistinct(t *testing.T) {
	assetID := ledger.SettlementAssetID()
	pool := ledger.NewMarketAccountKey(7, ledger.SubTypeMarketPool, assetID)
	fees := ledger.NewMarketAccountKey(7, ledger.SubTypeMarketFees, assetID)
	other := ledger.NewMarketAccountKey(8, ledger.SubTypeMarketPool, assetID)

	if pool == fees || pool == other {
		t.Error("market accounts must be distinct per market and sub-type")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ledger.SettlementAssetID())

	path := key.AccountPath()
	if path != "external:deposits:ICP" {
		t.Errorf("got %q, want %q", path, "external:deposits:ICP")
	}
}

func TestGetAssetID_Unknown(t *testing.T) {
	_, ok := ledger.GetAssetID("DOGE")
	if ok {
		t.Error("DOGE should not be a known asset")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	if balance := bt.GetUserBalance(uuid.New(), ledger.SettlementAssetID()); balance != 0 {
		t.Errorf("initial balance should be 0, got %d", balance)
	}
}

func TestBalanceTracker_ApplyJournal(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()

	bt.ApplyJournal(depositJournal(userID, 1_000_000))

	if got := bt.GetUserBalance(userID, ledger.SettlementAssetID()); got != 1_000_000 {
		t.Errorf("balance: got %d, want 1_000_000", got)
	}
}

func TestBalanceTracker_ValidateSufficientBalance(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	key := ledger.NewUserAccountKey(userID, ledger.SettlementAssetID())

	if err := bt.ValidateSufficientBalance(key, 100); err == nil {
		t.Error("expected error for insufficient balance")
	}

	bt.ApplyJournal(depositJournal(userID, 1_000))

	if err := bt.ValidateSufficientBalance(key, 1_000); err != nil {
		t.Errorf("should have sufficient balance: %v", err)
	}
	if err := bt.ValidateSufficientBalance(key, 1_001); err == nil {
		t.Error("expected error for 1_001 > 1_000")
	}
}

func TestBalanceTracker_SnapshotRestore(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	bt.ApplyJournal(depositJournal(userID, 999))

	snap := bt.Snapshot()
	for k := range snap {
		snap[k] = 0
	}
	if bt.GetUserBalance(userID, ledger.SettlementAssetID()) != 999 {
		t.Error("tracker balance should not be affected by snapshot mutation")
	}

	restored := ledger.NewBalanceTracker()
	restored.Restore(bt.Snapshot())
	if restored.GetUserBalance(userID, ledger.SettlementAssetID()) != 999 {
		t.Error("restored tracker lost the user balance")
	}
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func TestBatchValidate_EmptyBatch_Passes(t *testing.T) {
	batch := &ledger.Batch{BatchID: uuid.New()}

	if err := batch.Validate(); err != nil {
		t.Errorf("record-only batch should pass validation: %v", err)
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	for _, amount := range []int64{0, -100} {
		j := depositJournal(uuid.New(), amount)
		batch := &ledger.Batch{BatchID: j.BatchID, Journals: []ledger.Journal{j}}

		if err := batch.Validate(); err == nil {
			t.Errorf("amount %d should fail validation", amount)
		}
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	j := depositJournal(uuid.New(), 100)
	j.CreditAccount = j.DebitAccount
	batch := &ledger.Batch{BatchID: j.BatchID, Journals: []ledger.Journal{j}}

	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	j := depositJournal(uuid.New(), 100)
	batch := &ledger.Batch{BatchID: uuid.New(), Journals: []ledger.Journal{j}}

	if err := batch.Validate(); err == nil {
		t.Error("mismatched batch ID should fail validation")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestJournalGenerator_BuyRequiresBalance(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(ledger.SettlementAssetID(), bt)
	userID := uuid.New()

	if _, err := jg.GenerateBuy(userID, 1, "buy-1", 997, 3, 1, 0); err == nil {
		t.Fatal("buy without balance should fail pre-check")
	}

	bt.ApplyJournal(depositJournal(userID, 1_000))
	batch, err := jg.GenerateBuy(userID, 1, "buy-1", 997, 3, 1, 0)
	if err != nil {
		t.Fatalf("GenerateBuy: %v", err)
	}
	if len(batch.Journals) != 2 {
		t.Fatalf("journals: got %d, want 2", len(batch.Journals))
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	assetID := ledger.SettlementAssetID()
	if got := bt.GetBalance(ledger.NewMarketAccountKey(1, ledger.SubTypeMarketPool, assetID)); got != 997 {
		t.Errorf("pool: got %d, want 997", got)
	}
	if got := bt.GetBalance(ledger.NewMarketAccountKey(1, ledger.SubTypeMarketFees, assetID)); got != 3 {
		t.Errorf("fees: got %d, want 3", got)
	}
	if got := bt.GetUserBalance(userID, assetID); got != 0 {
		t.Errorf("user: got %d, want 0", got)
	}
}

func TestJournalGenerator_PayoutCannotOverdrawPool(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(ledger.SettlementAssetID(), bt)
	creator := uuid.New()
	bt.ApplyJournal(depositJournal(creator, 1_000))

	seed, err := jg.GenerateMarketSeed(creator, 1, "market-1", 1_000, 1, 0)
	if err != nil {
		t.Fatalf("GenerateMarketSeed: %v", err)
	}
	if err := bt.ApplyBatch(seed); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if _, err := jg.GenerateSell(uuid.New(), 1, "sell-1", 1_001, 2, 0); err == nil {
		t.Error("payout larger than pool should fail pre-check")
	}
	claim, err := jg.GenerateClaim(uuid.New(), 1, "claim-1", 0, 2, 0)
	if err != nil {
		t.Fatalf("zero claim should be allowed: %v", err)
	}
	if len(claim.Journals) != 0 {
		t.Errorf("zero claim should not produce entries, got %d", len(claim.Journals))
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("empty ledger should have zero global balance: %v", err)
	}

	bt.ApplyJournal(depositJournal(uuid.New(), 1_000_000))

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("balanced ledger should have zero global balance: %v", err)
	}
}

func TestInvariantValidator_MarketPoolMirror(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	jg := ledger.NewJournalGenerator(ledger.SettlementAssetID(), bt)
	creator := uuid.New()
	bt.ApplyJournal(depositJournal(creator, 5_000))

	seed, _ := jg.GenerateMarketSeed(creator, 3, "market-3", 5_000, 1, 0)
	if err := bt.ApplyBatch(seed); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if err := v.ValidateMarketPool(3, 5_000, ledger.SettlementAssetID()); err != nil {
		t.Errorf("pool should mirror market: %v", err)
	}
	if err := v.ValidateMarketPool(3, 4_999, ledger.SettlementAssetID()); err == nil {
		t.Error("expected mismatch error")
	}
}
