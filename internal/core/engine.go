package core

import (
	"PredictLedger/internal/domain"
	"PredictLedger/internal/event"
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/observability"
	"PredictLedger/internal/state"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine is the trading and settlement core. Every operation, queries
// included, runs as one critical section under mu: all validation happens
// before the first mutation, so a rejected operation leaves no trace.
type Engine struct {
	mu sync.Mutex

	sequence   int64
	hasher     *StateHasher
	assetID    ledger.AssetID
	balances   *ledger.BalanceTracker
	journalGen *ledger.JournalGenerator
	validator  *ledger.InvariantValidator
	markets    *state.MarketBook
	positions  *state.PositionManager
	claims     *state.ClaimLog
	admin      *uuid.UUID

	idempotency *IdempotencyChecker
	clock       func() time.Time
	metrics     *observability.Metrics
	log         zerolog.Logger

	persistChan chan<- CoreOutput
	publishChan chan<- CoreOutput

	// replaying suppresses output emission while the log is re-applied
	replaying bool
}

// CoreOutput is emitted once per committed operation
type CoreOutput struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
	Event    event.Event
}

// Config wires an Engine. Every field is optional.
type Config struct {
	// Admin is the initial global admin
	Admin *uuid.UUID

	// Clock stamps operations; defaults to time.Now
	Clock func() time.Time

	// DedupCapacity bounds the in-memory deposit dedup cache
	DedupCapacity int
	DBChecker     DBIdempotencyChecker

	Metrics *observability.Metrics
	Logger  *zerolog.Logger

	// PersistChan receives every output with a blocking send.
	PersistChan chan<- CoreOutput
	// PublishChan receives outputs with a non-blocking send; full means dropped.
	PublishChan chan<- CoreOutput
}

const defaultDedupCapacity = 100_000

// globalCheckInterval is how often (in sequences) the zero-sum check runs
const globalCheckInterval = 1000

func NewEngine(cfg Config) *Engine {
	balances := ledger.NewBalanceTracker()
	assetID := ledger.SettlementAssetID()

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	capacity := cfg.DedupCapacity
	if capacity <= 0 {
		capacity = defaultDedupCapacity
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	var admin *uuid.UUID
	if cfg.Admin != nil {
		a := *cfg.Admin
		admin = &a
	}

	return &Engine{
		sequence:    1,
		hasher:      NewStateHasher(),
		assetID:     assetID,
		balances:    balances,
		journalGen:  ledger.NewJournalGenerator(assetID, balances),
		validator:   ledger.NewInvariantValidator(balances),
		markets:     state.NewMarketBook(),
		positions:   state.NewPositionManager(),
		claims:      state.NewClaimLog(),
		admin:       admin,
		idempotency: NewIdempotencyChecker(capacity, cfg.DBChecker, cfg.Metrics),
		clock:       clock,
		metrics:     cfg.Metrics,
		log:         log,
		persistChan: cfg.PersistChan,
		publishChan: cfg.PublishChan,
	}
}

// now returns the operation timestamp, truncated to the ledger's microsecond resolution
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

// reject records a rejected operation and returns err unchanged
func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.CoreOpsRejected.WithLabelValues(op, domain.Code(err)).Inc()
	}
	e.log.Debug().Str("op", op).Str("code", domain.Code(err)).Err(err).Msg("operation rejected")
	return err
}

// commit applies the batch, runs post-checks, extends the hash chain and
// emits the output. Record mutations for the operation must already be done.
func (e *Engine) commit(op string, evt event.Event, batch *ledger.Batch, marketIDs []uint64, users []uuid.UUID, ts time.Time, start time.Time) {
	if len(batch.Journals) > 0 {
		if err := e.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := e.balances.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: apply batch failed after pre-checks: %v", err))
		}
	}

	if err := e.postCheckInvariants(marketIDs, users); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	digest := e.computeStateDigest(batch, marketIDs, users)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, digest)

	payload, err := event.Encode(evt)
	if err != nil {
		e.log.Error().Err(err).Str("op", op).Msg("failed to encode event payload")
	}

	output := CoreOutput{
		Envelope: &event.EventEnvelope{
			Sequence:       e.sequence,
			IdempotencyKey: evt.IdempotencyKey(),
			EventType:      evt.EventType(),
			MarketID:       evt.MarketID(),
			Timestamp:      ts,
			Payload:        payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		},
		Batch: batch,
		Event: evt,
	}
	e.sequence++

	// Persist is a blocking send so the event log never has gaps; the
	// publish channel drops on full since subscribers can re-read the log.
	if e.replaying {
		e.log.Debug().Str("op", op).Int64("sequence", output.Envelope.Sequence).Msg("operation replayed")
		return
	}
	if e.persistChan != nil {
		e.persistChan <- output
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.CoreOpsApplied.WithLabelValues(op).Inc()
		e.metrics.CoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.MarketsOpen.Set(float64(e.markets.CountOpen()))
		for _, j := range batch.Journals {
			e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
		}
	}

	e.log.Debug().
		Str("op", op).
		Int64("sequence", output.Envelope.Sequence).
		Str("idempotency_key", output.Envelope.IdempotencyKey).
		Int("journals", len(batch.Journals)).
		Msg("operation committed")
}

// postCheckInvariants verifies the records touched by an operation still
// agree with the ledger. Failure is a programming error.
func (e *Engine) postCheckInvariants(marketIDs []uint64, users []uuid.UUID) error {
	for _, id := range marketIDs {
		m := e.markets.Get(id)
		if m == nil {
			return fmt.Errorf("market %d missing after commit", id)
		}
		if err := e.validator.ValidateMarketPool(id, m.LiquidityPool, e.assetID); err != nil {
			return err
		}
		if m.IsOpen() && (m.YesReserve == 0 || m.NoReserve == 0) {
			return fmt.Errorf("open market %d has an empty reserve", id)
		}
	}
	for _, u := range users {
		if err := e.validator.ValidateUserBalanceNonNegative(u, e.assetID); err != nil {
			return err
		}
	}

	if e.sequence%globalCheckInterval == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return err
		}
	}
	return nil
}

// computeStateDigest serializes every account, market and position the
// operation touched, in a deterministic order.
func (e *Engine) computeStateDigest(batch *ledger.Batch, marketIDs []uint64, users []uuid.UUID) []byte {
	keys := batch.Touched()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].AccountPath() < keys[j].AccountPath()
	})

	digest := make([]byte, 0, 256)
	for _, key := range keys {
		digest = append(digest, []byte(key.AccountPath())...)
		digest = appendInt64LE(digest, e.balances.GetBalance(key))
	}

	ids := append([]uint64(nil), marketIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if m := e.markets.Get(id); m != nil {
			digest = append(digest, m.CanonicalBytes()...)
			for _, u := range users {
				if pos := e.positions.GetPosition(u, id); pos != nil {
					digest = append(digest, pos.CanonicalBytes()...)
				}
			}
		}
	}
	if e.admin != nil {
		digest = append(digest, e.admin[:]...)
	}
	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// toLedgerAmount converts an API amount to the signed ledger domain
func toLedgerAmount(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, domain.ErrInvalidAmount
	}
	return int64(v), nil
}

// balanceOf returns a user's balance. Balances never go negative.
func (e *Engine) balanceOf(user uuid.UUID) uint64 {
	b := e.balances.GetUserBalance(user, e.assetID)
	if b < 0 {
		return 0
	}
	return uint64(b)
}

// GetSequence returns the next sequence the engine will assign.
func (e *Engine) GetSequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

// VerifyLedger runs every ledger invariant across all markets and accounts.
func (e *Engine) VerifyLedger() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifyLedgerLocked()
}

func (e *Engine) verifyLedgerLocked() error {
	if err := e.validator.ValidateGlobalBalance(); err != nil {
		return err
	}
	for _, m := range e.markets.All() {
		if err := e.validator.ValidateMarketPool(m.ID, m.LiquidityPool, e.assetID); err != nil {
			return err
		}
	}
	for key, bal := range e.balances.Snapshot() {
		if key.Scope != ledger.AccountScopeExternal && bal < 0 {
			return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), bal)
		}
	}
	return nil
}
