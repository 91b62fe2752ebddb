package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rawblock/linkfinder/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	record := model.Checkpoint{
		SessionID:  "sess-1",
		CreatedAt:  time.Now(),
		Reason:     model.ReasonManual,
		TraceState: model.TraceState{Status: model.SubStatusNoConnection},
	}

	cpID, err := store.Write(record)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Read("sess-1", cpID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.SessionID != "sess-1" || got.Reason != model.ReasonManual {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.SchemaVersion != model.CurrentSchemaVersion {
		t.Fatalf("schema version = %d, want %d", got.SchemaVersion, model.CurrentSchemaVersion)
	}
}

func TestNoPartialFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	record := model.Checkpoint{SessionID: "sess-2", CreatedAt: time.Now(), Reason: model.ReasonCancel}
	cpID, err := store.Write(record)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("expected no leftover .tmp files, found %v", matches)
	}
	if _, err := store.Read("sess-2", cpID); err != nil {
		t.Fatalf("expected a fully valid file to be readable: %v", err)
	}
}

func TestListSortedByRecency(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	first, _ := store.Write(model.Checkpoint{SessionID: "sess-3", CreatedAt: time.Now(), Reason: model.ReasonPeriodic})
	time.Sleep(2 * time.Millisecond)
	second, _ := store.Write(model.Checkpoint{SessionID: "sess-3", CreatedAt: time.Now(), Reason: model.ReasonPeriodic})

	all, err := store.List("sess-3")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(all))
	}
	if all[0].CheckpointID != second || all[1].CheckpointID != first {
		t.Fatalf("expected most-recent-first ordering, got %s then %s", all[0].CheckpointID, all[1].CheckpointID)
	}
}

func TestCleanupRetainsNewest(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	store.Write(model.Checkpoint{SessionID: "sess-4", CreatedAt: time.Now(), Reason: model.ReasonPeriodic})
	time.Sleep(2 * time.Millisecond)
	newest, _ := store.Write(model.Checkpoint{SessionID: "sess-4", CreatedAt: time.Now(), Reason: model.ReasonPeriodic})

	deleted, err := store.Cleanup("sess-4")
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	all, _ := store.List("sess-4")
	if len(all) != 1 || all[0].CheckpointID != newest {
		t.Fatalf("expected only newest checkpoint to remain, got %+v", all)
	}
}
