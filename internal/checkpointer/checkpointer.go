// Package checkpointer implements the Periodic Checkpointer (C8): a
// cooperative per-session task that snapshots the active traversal at a
// fixed interval, and once more, with reason=cancel, when told to stop.
package checkpointer

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/linkfinder/internal/checkpoint"
	"github.com/rawblock/linkfinder/internal/model"
)

// Snapshotter is the narrow interface the checkpointer needs from the
// Session Manager: a consistent read of one session's current checkpoint
// record, built from its latest published trace_state view.
type Snapshotter interface {
	SnapshotForCheckpoint(sessionID string) (model.Checkpoint, bool)
}

// Checkpointer runs one per active session.
type Checkpointer struct {
	store    *checkpoint.Store
	snap     Snapshotter
	interval time.Duration
}

func New(store *checkpoint.Store, snap Snapshotter, interval time.Duration) *Checkpointer {
	return &Checkpointer{store: store, snap: snap, interval: interval}
}

// Run loops until ctx is cancelled, taking a periodic snapshot on each tick,
// then writes one final reason=cancel snapshot before returning. The
// interval wait is the cooperative suspension point for this task.
func (c *Checkpointer) Run(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.snapshot(sessionID, model.ReasonPeriodic)
		case <-ctx.Done():
			c.snapshot(sessionID, model.ReasonCancel)
			return
		}
	}
}

func (c *Checkpointer) snapshot(sessionID, reason string) {
	record, ok := c.snap.SnapshotForCheckpoint(sessionID)
	if !ok {
		return
	}
	record.Reason = reason

	if _, err := c.store.Write(record); err != nil {
		log.Printf("[Checkpointer] write failed for session %s (reason=%s): %v", sessionID, reason, err)
		return
	}
}
