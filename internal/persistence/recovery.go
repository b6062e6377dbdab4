package persistence

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/event"
	"PredictLedger/internal/observability"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const replayBatchSize = 1000

// SnapshotStore is the part of SnapshotManager used by recovery and snapshotting
type SnapshotStore interface {
	LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error)
	LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]*event.EventEnvelope, error)
	SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error)
	MarkVerified(ctx context.Context, sequence int64) error
}

// RecoveryResult describes how the engine was rebuilt
type RecoveryResult struct {
	SnapshotSequence int64 // 0 on a cold start
	Replayed         int
	NextSequence     int64
}

// Recover rebuilds engine state: restore the latest snapshot, then replay
// the log tail after it. Every replayed event must reproduce its stored
// state hash. A snapshot that cannot be restored is skipped and the whole
// log is replayed instead.
func Recover(ctx context.Context, engine *core.Engine, store SnapshotStore, log zerolog.Logger) (RecoveryResult, error) {
	var res RecoveryResult

	snap, err := store.LoadLatestSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load snapshot, replaying full log")
	}
	if snap != nil {
		if err := restore(engine, snap); err != nil {
			log.Warn().Err(err).Int64("sequence", snap.Sequence).Msg("snapshot unusable, replaying full log")
		} else {
			res.SnapshotSequence = snap.Sequence
			log.Info().Int64("sequence", snap.Sequence).Msg("restored snapshot")
		}
	} else {
		log.Info().Msg("no snapshot found, cold start")
	}

	from := engine.GetSequence()
	for {
		envelopes, err := store.LoadEventsFrom(ctx, from, replayBatchSize)
		if err != nil {
			return res, fmt.Errorf("load events from seq %d: %w", from, err)
		}
		if len(envelopes) == 0 {
			break
		}
		for _, env := range envelopes {
			if err := engine.Replay(env); err != nil {
				return res, fmt.Errorf("replay seq %d: %w", env.Sequence, err)
			}
			res.Replayed++
		}
		from = envelopes[len(envelopes)-1].Sequence + 1
	}
	res.NextSequence = engine.GetSequence()

	if res.SnapshotSequence > 0 {
		if err := store.MarkVerified(ctx, res.SnapshotSequence); err != nil {
			log.Warn().Err(err).Int64("sequence", res.SnapshotSequence).Msg("mark snapshot verified failed")
		}
	}

	log.Info().
		Int64("snapshot_sequence", res.SnapshotSequence).
		Int("replayed", res.Replayed).
		Int64("next_sequence", res.NextSequence).
		Msg("recovery complete")
	return res, nil
}

func restore(engine *core.Engine, snap *SnapshotData) error {
	cs, err := snap.ToCoreSnapshot()
	if err != nil {
		return err
	}
	return engine.RestoreFromSnapshot(cs)
}

// ErrSnapshotAhead means the engine has committed operations the event log
// does not hold yet; a snapshot now could cover sequences missing from the log.
var ErrSnapshotAhead = errors.New("snapshot ahead of persisted log")

// Snapshotter periodically saves engine snapshots.
type Snapshotter struct {
	engine *core.Engine
	store  SnapshotStore
	// persisted reports the highest sequence in the event log
	persisted func() int64
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewSnapshotter(engine *core.Engine, store SnapshotStore, persisted func() int64, metrics *observability.Metrics, log zerolog.Logger) *Snapshotter {
	return &Snapshotter{
		engine:    engine,
		store:     store,
		persisted: persisted,
		metrics:   metrics,
		log:       log,
	}
}

// Take saves a snapshot of the current engine state. It returns the
// snapshot's sequence, or 0 when nothing has been committed yet.
func (s *Snapshotter) Take(ctx context.Context) (int64, error) {
	cs := s.engine.CreateSnapshotState()
	if cs.Sequence == 0 {
		return 0, nil
	}
	if s.persisted != nil && s.persisted() < cs.Sequence {
		return 0, ErrSnapshotAhead
	}

	size, err := s.store.SaveSnapshot(ctx, FromCoreSnapshot(cs, time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SnapshotTaken.Inc()
		s.metrics.SnapshotSizeBytes.Set(float64(size))
		s.metrics.SnapshotLastSeq.Set(float64(cs.Sequence))
	}
	s.log.Info().Int64("sequence", cs.Sequence).Int("bytes", size).Msg("snapshot saved")
	return cs.Sequence, nil
}

// Run takes a snapshot whenever interval sequences have been committed since
// the last one, checking every checkEvery.
func (s *Snapshotter) Run(ctx context.Context, interval int64, checkEvery time.Duration) {
	if interval <= 0 {
		interval = 100_000
	}
	last := s.engine.GetSequence()

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.engine.GetSequence()-last < interval {
				continue
			}
			seq, err := s.Take(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("periodic snapshot skipped")
				continue
			}
			if seq > 0 {
				last = seq + 1
			}
		}
	}
}
