package ingestion

import (
	"PredictLedger/internal/ledger"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformed marks a message that can never be processed; it is
// terminated rather than redelivered.
var ErrMalformed = errors.New("malformed message")

// DepositCommand is a confirmed external deposit ready for the engine.
type DepositCommand struct {
	DepositID string
	UserID    uuid.UUID
	Amount    uint64
	Timestamp time.Time
}

// depositJSON is the wire format published by the deposit bridge.
// Field names use snake_case to match upstream producers.
type depositJSON struct {
	DepositID   string `json:"deposit_id"`
	UserID      string `json:"user_id"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParseDeposit validates and converts a deposit message. An empty asset
// means the settlement asset.
func ParseDeposit(data []byte) (*DepositCommand, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: parse deposit: %v", ErrMalformed, err)
	}

	depositID := strings.TrimSpace(j.DepositID)
	if depositID == "" {
		return nil, fmt.Errorf("%w: deposit_id is required", ErrMalformed)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: parse user_id: %v", ErrMalformed, err)
	}
	if j.Asset != "" && !strings.EqualFold(j.Asset, ledger.SettlementAsset) {
		return nil, fmt.Errorf("%w: unsupported asset %q", ErrMalformed, j.Asset)
	}
	if j.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrMalformed)
	}

	cmd := &DepositCommand{
		DepositID: depositID,
		UserID:    userID,
		Amount:    j.Amount,
	}
	if j.TimestampUs > 0 {
		cmd.Timestamp = time.UnixMicro(j.TimestampUs).UTC()
	}
	return cmd, nil
}
