package persistence_test

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/event"
	"PredictLedger/internal/persistence"
	"PredictLedger/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestPostgres_EventLogRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := persistence.NewMigrator(db, testutil.MigrationsDir(), zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ch := make(chan core.CoreOutput, 16)
	e := core.NewEngine(core.Config{PersistChan: ch})
	user := uuid.New()
	if _, err := e.Deposit(user, "it-dep-1", 5_000); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateMarket(user, "it", "", 1_000); err != nil {
		t.Fatal(err)
	}
	close(ch)

	writer := persistence.NewEventLogWriter(db)
	worker := persistence.NewPersistenceWorker(writer, ch, 10, 10*time.Millisecond, nil, zerolog.Nop())
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("worker: %v", err)
	}

	dedup := persistence.NewPostgresIdempotencyChecker(db)
	dup, err := dedup.IsDuplicate(event.EventTypeDepositCredited.String(), "it-dep-1")
	if err != nil || !dup {
		t.Errorf("persisted deposit should be a duplicate: %v, %v", dup, err)
	}

	snapMgr := persistence.NewSnapshotManager(db)
	latest, err := snapMgr.GetLatestSequence(ctx)
	if err != nil || latest != 2 {
		t.Fatalf("latest sequence: got %d, %v", latest, err)
	}

	envelopes, err := snapMgr.LoadEventsFrom(ctx, 1, 100)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	replica := core.NewEngine(core.Config{})
	for _, env := range envelopes {
		if err := replica.Replay(env); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if replica.GetStateHash() != e.GetStateHash() {
		t.Error("replayed log does not reproduce the state hash")
	}

	data := persistence.FromCoreSnapshot(e.CreateSnapshotState(), time.Now())
	if _, err := snapMgr.SaveSnapshot(ctx, data); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil || loaded == nil || loaded.Sequence != 2 {
		t.Fatalf("load snapshot: %+v, %v", loaded, err)
	}
}
