package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateUserBalanceNonNegative checks a user's balance >= 0
func (v *InvariantValidator) ValidateUserBalanceNonNegative(userID uuid.UUID, assetID AssetID) error {
	return v.tracker.ValidateNonNegative(NewUserAccountKey(userID, assetID))
}

// ValidateMarketPool verifies the pool account mirrors the market record's escrow
func (v *InvariantValidator) ValidateMarketPool(marketID uint64, expected uint64, assetID AssetID) error {
	balance := v.tracker.GetBalance(NewMarketAccountKey(marketID, SubTypeMarketPool, assetID))
	if balance < 0 || uint64(balance) != expected {
		return fmt.Errorf("market %d pool account %d does not match market pool %d", marketID, balance, expected)
	}
	return nil
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
