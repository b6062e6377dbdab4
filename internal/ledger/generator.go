package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches for engine operations.
// Every method pre-checks that the accounts it drains can cover the transfer,
// so a returned batch always applies cleanly.
type JournalGenerator struct {
	assetID        AssetID
	balanceTracker *BalanceTracker
}

func NewJournalGenerator(assetID AssetID, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		assetID:        assetID,
		balanceTracker: tracker,
	}
}

func (jg *JournalGenerator) newBatch(ref string, seq, ts int64, legs int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  ref,
		Sequence:  seq,
		Timestamp: ts,
		Journals:  make([]Journal, 0, legs),
	}
}

func (jg *JournalGenerator) addEntry(b *Batch, debit, credit AccountKey, amount int64, jt JournalType) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       jg.assetID,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// GenerateDeposit credits a user from the external deposit rail.
// Moves funds: external:deposits → user:balance
func (jg *JournalGenerator) GenerateDeposit(userID uuid.UUID, ref string, amount, seq, ts int64) (*Batch, error) {
	user := NewUserAccountKey(userID, jg.assetID)
	if err := jg.balanceTracker.ValidateCreditable(user, amount); err != nil {
		return nil, fmt.Errorf("deposit pre-check failed: %w", err)
	}

	batch := jg.newBatch(ref, seq, ts, 1)
	jg.addEntry(batch, user, NewExternalAccountKey(SubTypeExternalDeposits, jg.assetID), amount, JournalTypeDeposit)
	return batch, nil
}

// GenerateMarketSeed escrows the creator's initial liquidity.
// Moves funds: user:balance → market:pool
func (jg *JournalGenerator) GenerateMarketSeed(creator uuid.UUID, marketID uint64, ref string, amount, seq, ts int64) (*Batch, error) {
	user := NewUserAccountKey(creator, jg.assetID)
	if err := jg.balanceTracker.ValidateSufficientBalance(user, amount); err != nil {
		return nil, fmt.Errorf("market seed pre-check failed: %w", err)
	}

	batch := jg.newBatch(ref, seq, ts, 1)
	jg.addEntry(batch, NewMarketAccountKey(marketID, SubTypeMarketPool, jg.assetID), user, amount, JournalTypeMarketSeed)
	return batch, nil
}

// GenerateBuy moves a trade's input into the market.
// Moves funds: user:balance → market:pool (toPool), user:balance → market:fees (fee)
func (jg *JournalGenerator) GenerateBuy(userID uuid.UUID, marketID uint64, ref string, toPool, fee, seq, ts int64) (*Batch, error) {
	user := NewUserAccountKey(userID, jg.assetID)
	if err := jg.balanceTracker.ValidateSufficientBalance(user, toPool+fee); err != nil {
		return nil, fmt.Errorf("buy pre-check failed: %w", err)
	}

	batch := jg.newBatch(ref, seq, ts, 2)
	if toPool > 0 {
		jg.addEntry(batch, NewMarketAccountKey(marketID, SubTypeMarketPool, jg.assetID), user, toPool, JournalTypeBuyPool)
	}
	if fee > 0 {
		jg.addEntry(batch, NewMarketAccountKey(marketID, SubTypeMarketFees, jg.assetID), user, fee, JournalTypeBuyFee)
	}
	return batch, nil
}

// GenerateSell pays a seller out of the market pool.
// Moves funds: market:pool → user:balance
func (jg *JournalGenerator) GenerateSell(userID uuid.UUID, marketID uint64, ref string, payout, seq, ts int64) (*Batch, error) {
	return jg.generatePoolPayout(userID, marketID, ref, payout, seq, ts, JournalTypeSellPayout)
}

// GenerateClaim pays a winner's reward out of the market pool.
// Moves funds: market:pool → user:balance
func (jg *JournalGenerator) GenerateClaim(userID uuid.UUID, marketID uint64, ref string, reward, seq, ts int64) (*Batch, error) {
	return jg.generatePoolPayout(userID, marketID, ref, reward, seq, ts, JournalTypeClaimPayout)
}

// GenerateEmpty returns a batch with no entries, for operations that only change records.
func (jg *JournalGenerator) GenerateEmpty(ref string, seq, ts int64) *Batch {
	return jg.newBatch(ref, seq, ts, 0)
}

func (jg *JournalGenerator) generatePoolPayout(userID uuid.UUID, marketID uint64, ref string, amount, seq, ts int64, jt JournalType) (*Batch, error) {
	pool := NewMarketAccountKey(marketID, SubTypeMarketPool, jg.assetID)
	if err := jg.balanceTracker.ValidateSufficientBalance(pool, amount); err != nil {
		return nil, fmt.Errorf("%s pre-check failed: %w", jt, err)
	}
	user := NewUserAccountKey(userID, jg.assetID)
	if err := jg.balanceTracker.ValidateCreditable(user, amount); err != nil {
		return nil, fmt.Errorf("%s pre-check failed: %w", jt, err)
	}

	batch := jg.newBatch(ref, seq, ts, 1)
	if amount > 0 {
		jg.addEntry(batch, user, pool, amount, jt)
	}
	return batch, nil
}
