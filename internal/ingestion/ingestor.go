package ingestion

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/observability"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Depositor credits balances; *core.Engine implements it.
type Depositor interface {
	Deposit(caller uuid.UUID, depositID string, amount uint64) (uint64, error)
}

// DepositIngestor applies inbound deposit messages to the engine.
type DepositIngestor struct {
	depositor Depositor
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewDepositIngestor(depositor Depositor, metrics *observability.Metrics, log zerolog.Logger) *DepositIngestor {
	return &DepositIngestor{depositor: depositor, metrics: metrics, log: log}
}

// Run processes messages until ctx is cancelled or rawChan closes.
func (di *DepositIngestor) Run(ctx context.Context, rawChan <-chan RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawChan:
			if !ok {
				return
			}
			di.Handle(raw)
		}
	}
}

// Handle applies one message and settles it: ack on success or duplicate,
// term on malformed or rejected input, nak otherwise.
func (di *DepositIngestor) Handle(raw RawEvent) {
	cmd, err := ParseDeposit(raw.Data)
	if err != nil {
		di.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed deposit")
		di.settle(raw.TermFunc, "malformed")
		return
	}

	balance, err := di.depositor.Deposit(cmd.UserID, cmd.DepositID, cmd.Amount)
	switch {
	case err == nil:
		di.log.Debug().
			Str("deposit_id", cmd.DepositID).
			Str("user", cmd.UserID.String()).
			Uint64("amount", cmd.Amount).
			Uint64("balance", balance).
			Msg("deposit credited")
		di.settle(raw.AckFunc, "applied")
	case errors.Is(err, domain.ErrInvalidAmount):
		di.log.Warn().Err(err).Str("deposit_id", cmd.DepositID).Uint64("amount", cmd.Amount).Msg("deposit rejected")
		di.settle(raw.TermFunc, "rejected")
	default:
		di.log.Error().Err(err).Str("deposit_id", cmd.DepositID).Msg("deposit failed, will be redelivered")
		di.settle(raw.NakFunc, "retry")
	}
}

func (di *DepositIngestor) settle(fn func(), result string) {
	if fn != nil {
		fn()
	}
	if di.metrics != nil {
		di.metrics.IngestMessages.WithLabelValues(result).Inc()
	}
}
