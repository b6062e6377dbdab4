package persistence

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/event"
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/state"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// snapshotFormatVersion identifies the JSON layout of SnapshotData
const snapshotFormatVersion = 1

// SnapshotManager stores engine snapshots and reads the event log for recovery.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable form of core.SnapshotState.
type SnapshotData struct {
	Sequence     int64               `json:"sequence"`
	StateHash    []byte              `json:"state_hash"`
	NextMarketID uint64              `json:"next_market_id"`
	Admin        *uuid.UUID          `json:"admin,omitempty"`
	Balances     []BalanceSnapshot   `json:"balances"`
	Markets      []state.Market      `json:"markets"`
	Positions    []state.Position    `json:"positions"`
	Claims       []state.RewardClaim `json:"claims"`
	DedupKeys    []string            `json:"dedup_keys"` // recent keys for LRU warming
	CreatedAt    time.Time           `json:"created_at"`
}

// BalanceSnapshot is one ledger account. Path is informational.
type BalanceSnapshot struct {
	Scope    uint8  `json:"scope"`
	EntityID string `json:"entity_id"` // hex
	SubType  uint8  `json:"sub_type"`
	AssetID  uint16 `json:"asset_id"`
	Path     string `json:"path"`
	Balance  int64  `json:"balance"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// FromCoreSnapshot converts engine state into its stored form
func FromCoreSnapshot(s *core.SnapshotState, createdAt time.Time) *SnapshotData {
	data := &SnapshotData{
		Sequence:     s.Sequence,
		StateHash:    append([]byte(nil), s.StateHash[:]...),
		NextMarketID: s.NextMarketID,
		Admin:        s.Admin,
		Markets:      s.Markets,
		Positions:    s.Positions,
		Claims:       s.Claims,
		DedupKeys:    s.DedupKeys,
		CreatedAt:    createdAt,
	}
	for key, bal := range s.Balances {
		data.Balances = append(data.Balances, BalanceSnapshot{
			Scope:    uint8(key.Scope),
			EntityID: hex.EncodeToString(key.EntityID[:]),
			SubType:  uint8(key.SubType),
			AssetID:  uint16(key.AssetID),
			Path:     key.AccountPath(),
			Balance:  bal,
		})
	}
	return data
}

// ToCoreSnapshot converts a stored snapshot back into engine state
func (d *SnapshotData) ToCoreSnapshot() (*core.SnapshotState, error) {
	if len(d.StateHash) != 32 {
		return nil, fmt.Errorf("snapshot %d: state hash has %d bytes", d.Sequence, len(d.StateHash))
	}
	s := &core.SnapshotState{
		Sequence:     d.Sequence,
		NextMarketID: d.NextMarketID,
		Admin:        d.Admin,
		Balances:     make(map[ledger.AccountKey]int64, len(d.Balances)),
		Markets:      d.Markets,
		Positions:    d.Positions,
		Claims:       d.Claims,
		DedupKeys:    d.DedupKeys,
	}
	copy(s.StateHash[:], d.StateHash)

	for _, b := range d.Balances {
		raw, err := hex.DecodeString(b.EntityID)
		if err != nil || len(raw) != 16 {
			return nil, fmt.Errorf("snapshot %d: bad entity id for %s", d.Sequence, b.Path)
		}
		key := ledger.AccountKey{
			Scope:   ledger.AccountScope(b.Scope),
			SubType: ledger.AccountSubType(b.SubType),
			AssetID: ledger.AssetID(b.AssetID),
		}
		copy(key.EntityID[:], raw)
		s.Balances[key] = b.Balance
	}
	return s, nil
}

// SaveSnapshot persists a snapshot. Snapshots are stored unverified; recovery
// verifies them by replaying the log tail and then calls MarkVerified.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, uuid.New(), snap.Sequence, string(data), snap.StateHash, snapshotFormatVersion, len(data), snap.CreatedAt)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// LoadLatestSnapshot loads the most recent snapshot, or nil on a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	var data []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE format_version = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, snapshotFormatVersion).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads up to limit events starting at fromSequence, in order.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]*event.EventEnvelope, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, market_id, payload,
		       state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []*event.EventEnvelope
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(
			&r.Sequence, &r.EventType, &r.IdempotencyKey, &r.MarketID,
			&r.Payload, &r.StateHash, &r.PrevHash, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		env, err := r.Envelope()
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}

// Envelope rebuilds the engine envelope from a stored row
func (r *EventRow) Envelope() (*event.EventEnvelope, error) {
	et := event.ParseEventType(r.EventType)
	if et == event.EventTypeUnknown {
		return nil, fmt.Errorf("sequence %d: unknown event type %q", r.Sequence, r.EventType)
	}
	if len(r.StateHash) != 32 || len(r.PrevHash) != 32 {
		return nil, fmt.Errorf("sequence %d: malformed hash", r.Sequence)
	}
	env := &event.EventEnvelope{
		Sequence:       r.Sequence,
		IdempotencyKey: r.IdempotencyKey,
		EventType:      et,
		Timestamp:      r.Timestamp,
		Payload:        r.Payload,
	}
	if r.MarketID != nil {
		id := uint64(*r.MarketID)
		env.MarketID = &id
	}
	copy(env.StateHash[:], r.StateHash)
	copy(env.PrevHash[:], r.PrevHash)
	return env, nil
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
