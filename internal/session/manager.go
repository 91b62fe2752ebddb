// Package session implements the Session Manager (C6): the process-wide
// registry of sessions and the operations that start, inspect, cancel,
// checkpoint, and resume them. Each session's traversal task is the sole
// writer of its trace_state; every other reader uses the snapshot taken
// under entry.mu.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/linkfinder/internal/apierr"
	"github.com/rawblock/linkfinder/internal/checkpoint"
	"github.com/rawblock/linkfinder/internal/checkpointer"
	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/db"
	"github.com/rawblock/linkfinder/internal/export"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/probe"
	"github.com/rawblock/linkfinder/internal/traversal"
	"github.com/rawblock/linkfinder/internal/txsource"
)

// deleteGracePeriod bounds how long Delete waits for a running session's
// final checkpoint before abandoning it, per spec.md §5.
const deleteGracePeriod = 5 * time.Second

// entry is one session's registry row. mu guards session; the traversal
// goroutine is the only writer, taken under Lock after each processed
// address, so readers under RLock never observe a torn trace_state.
type entry struct {
	mu       sync.RWMutex
	session  model.Session
	cancel   context.CancelFunc
	exporter *export.Exporter
	done     chan struct{}
}

// Manager owns the session registry and wires each session's Traversal
// Engine, Periodic Checkpointer, and Incremental Exporter.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	source  txsource.Source
	engine  *traversal.Engine
	cpStore *checkpoint.Store
	cfg     config.Config
	audit   *db.Store // optional; nil means no audit log configured
}

func New(source txsource.Source, engine *traversal.Engine, cpStore *checkpoint.Store, cfg config.Config) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		source:   source,
		engine:   engine,
		cpStore:  cpStore,
		cfg:      cfg,
	}
}

// WithAudit attaches an optional audit log store and returns the same
// Manager for chaining at wiring time.
func (m *Manager) WithAudit(audit *db.Store) *Manager {
	m.audit = audit
	return m
}

func (m *Manager) recordEvent(sessionID, eventType, detail string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.RecordSessionEvent(context.Background(), sessionID, eventType, detail); err != nil {
		log.Printf("[Session] audit record failed for %s: %v", sessionID, err)
	}
}

// Start allocates a new session, runs the Block-range Probe if the request
// omits a block range, then spawns the traversal task along with its
// Periodic Checkpointer and Incremental Exporter.
func (m *Manager) Start(ctx context.Context, req model.Request) (string, error) {
	if len(req.SeedsA) == 0 || len(req.SeedsB) == 0 {
		return "", apierr.BadRequestf("both address sets must be non-empty")
	}
	if req.MaxDepth <= 0 || req.MaxDepth > m.cfg.MaxDepth {
		return "", apierr.BadRequestf("max_depth must be in (0, %d]", m.cfg.MaxDepth)
	}

	sessionID := uuid.NewString()

	effRange := req.UserBlockRange
	if effRange.Lo == nil && effRange.Hi == nil {
		effRange = probe.Narrow(ctx, m.source, req.SeedsA, req.SeedsB, req.UserBlockRange)
	}

	exporter, err := export.New(m.cfg.ExportDir, sessionID, req)
	if err != nil {
		return "", apierr.Internalf(err, "create exporter for session %s", sessionID)
	}

	e := &entry{
		session: model.Session{
			SessionID:           sessionID,
			Status:              model.StatusRunning,
			Request:             req,
			EffectiveBlockRange: effRange,
			StartedAt:           time.Now(),
			Exports:             exporter.Paths(),
		},
		exporter: exporter,
		done:     make(chan struct{}),
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	m.mu.Lock()
	m.sessions[sessionID] = e
	m.mu.Unlock()

	go m.runTraversal(taskCtx, e, nil)

	cp := checkpointer.New(m.cpStore, m, m.cfg.CheckpointInterval)
	go cp.Run(taskCtx, sessionID)

	m.recordEvent(sessionID, "started", fmt.Sprintf("A=%d seeds, B=%d seeds, max_depth=%d", len(req.SeedsA), len(req.SeedsB), req.MaxDepth))
	log.Printf("[Session] started %s (A=%d seeds, B=%d seeds, max_depth=%d)", sessionID, len(req.SeedsA), len(req.SeedsB), req.MaxDepth)
	return sessionID, nil
}

// runTraversal is the sole writer of e.session.TraceState. It runs to
// completion, to cancellation, or to a fatal-internal failure, in all
// cases leaving the session in a terminal or resumable state.
func (m *Manager) runTraversal(ctx context.Context, e *entry, prior *model.TraceState) {
	defer close(e.done)
	defer e.cancel() // release resources if we return before an explicit Cancel

	req := e.session.Request
	effRange := e.session.EffectiveBlockRange

	onProgress := func(ev traversal.ProgressEvent) {
		e.mu.Lock()
		e.session.TraceState = ev.TraceState
		e.mu.Unlock()
	}
	onConnection := func(c model.Connection) {
		if err := e.exporter.Append(c); err != nil {
			log.Printf("[Session] export append failed for %s: %v", e.session.SessionID, err)
		}
		if m.audit != nil {
			if err := m.audit.RecordConnection(context.Background(), e.session.SessionID, c); err != nil {
				log.Printf("[Session] audit connection record failed for %s: %v", e.session.SessionID, err)
			}
		}
	}

	result := func() (res traversal.Result) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Session] fatal-internal in traversal for %s: %v", e.session.SessionID, r)
				e.mu.Lock()
				e.session.Status = model.StatusFailed
				e.session.Error = fmt.Sprintf("%v", r)
				res = traversal.Result{Status: model.SubStatusInterrupted, TraceState: e.session.TraceState}
				e.mu.Unlock()
			}
		}()
		return m.engine.Run(ctx, req.SeedsA, req.SeedsB, req.MaxDepth, effRange, prior, onProgress, onConnection)
	}()

	e.mu.Lock()
	wasFailed := e.session.Status == model.StatusFailed
	e.session.TraceState = result.TraceState
	if !wasFailed {
		switch result.Status {
		case model.SubStatusInterrupted:
			e.session.Status = model.StatusCancelled
		default:
			e.session.Status = model.StatusCompleted
		}
	}
	finalStatus := e.session.Status
	e.mu.Unlock()

	if err := e.exporter.Finalize(finalStatus); err != nil {
		log.Printf("[Session] export finalize failed for %s: %v", e.session.SessionID, err)
	}

	reason := model.ReasonCancel
	if finalStatus == model.StatusCompleted {
		reason = model.ReasonManual
	}
	m.writeCheckpoint(e, reason)

	m.recordEvent(e.session.SessionID, finalStatus, fmt.Sprintf("connections=%d", len(result.TraceState.ConnectionsFound)))
	log.Printf("[Session] %s finished with status=%s", e.session.SessionID, finalStatus)
}

func (m *Manager) writeCheckpoint(e *entry, reason string) {
	e.mu.RLock()
	cp := checkpointFromSession(e.session, reason)
	e.mu.RUnlock()

	cpID, err := m.cpStore.Write(cp)
	if err != nil {
		log.Printf("[Session] checkpoint write failed for %s: %v", e.session.SessionID, err)
		return
	}

	e.mu.Lock()
	e.session.CheckpointID = cpID
	e.session.LastCheckpointTime = time.Now()
	e.mu.Unlock()
}

func checkpointFromSession(s model.Session, reason string) model.Checkpoint {
	return model.Checkpoint{
		SessionID:           s.SessionID,
		CreatedAt:           time.Now(),
		Reason:              reason,
		Request:             s.Request,
		EffectiveBlockRange: s.EffectiveBlockRange,
		ProgressSummary:     fmt.Sprintf("depth=%d connections=%d", s.TraceState.SearchDepth, len(s.TraceState.ConnectionsFound)),
		TraceState:          s.TraceState,
	}
}

// SnapshotForCheckpoint implements checkpointer.Snapshotter.
func (m *Manager) SnapshotForCheckpoint(sessionID string) (model.Checkpoint, bool) {
	e, ok := m.get(sessionID)
	if !ok {
		return model.Checkpoint{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session.Status != model.StatusRunning {
		return model.Checkpoint{}, false
	}
	return checkpointFromSession(e.session, model.ReasonPeriodic), true
}

// Status returns a read-only snapshot of the session.
func (m *Manager) Status(sessionID string) (model.Session, error) {
	e, ok := m.get(sessionID)
	if !ok {
		return model.Session{}, apierr.NotFoundf("session %s not found", sessionID)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session, nil
}

// Results returns the session only if it has completed.
func (m *Manager) Results(sessionID string) (model.Session, error) {
	s, err := m.Status(sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if s.Status != model.StatusCompleted {
		return model.Session{}, apierr.InvalidStatef("session %s has not completed (status=%s)", sessionID, s.Status)
	}
	return s, nil
}

// List returns every session currently registered.
func (m *Manager) List() []model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		e.mu.RLock()
		out = append(out, e.session)
		e.mu.RUnlock()
	}
	return out
}

// Cancel requests the traversal task stop at its next suspension point.
// Idempotent: cancelling an already-terminal session is a no-op success.
func (m *Manager) Cancel(sessionID string) error {
	e, ok := m.get(sessionID)
	if !ok {
		return apierr.NotFoundf("session %s not found", sessionID)
	}
	e.mu.RLock()
	running := e.session.Status == model.StatusRunning
	e.mu.RUnlock()
	if !running {
		return nil
	}
	e.cancel()
	return nil
}

// ForceCheckpoint takes a manual snapshot of the running session's current
// trace_state without interrupting it.
func (m *Manager) ForceCheckpoint(sessionID string) (string, string, error) {
	e, ok := m.get(sessionID)
	if !ok {
		return "", "", apierr.NotFoundf("session %s not found", sessionID)
	}
	e.mu.RLock()
	cp := checkpointFromSession(e.session, model.ReasonManual)
	e.mu.RUnlock()

	cpID, err := m.cpStore.Write(cp)
	if err != nil {
		return "", "", apierr.Internalf(err, "force checkpoint for session %s", sessionID)
	}
	return cpID, cp.ProgressSummary, nil
}

// Resume loads a checkpoint and starts a brand-new session seeded from its
// trace_state. The original session remains historical, untouched.
func (m *Manager) Resume(checkpointSessionID, checkpointID string) (string, error) {
	cp, err := m.cpStore.Read(checkpointSessionID, checkpointID)
	if err != nil {
		return "", apierr.NotFoundf("checkpoint %s/%s not found", checkpointSessionID, checkpointID)
	}
	return m.resumeFromCheckpoint(*cp)
}

// ResumeAuto resumes from the most recent checkpoint across all sessions.
func (m *Manager) ResumeAuto() (string, error) {
	cp, err := m.cpStore.LatestOverall()
	if err != nil {
		return "", apierr.NotFoundf("no checkpoints exist")
	}
	return m.resumeFromCheckpoint(*cp)
}

// ResumeSession resumes from the most recent checkpoint of one specific
// (historical) session.
func (m *Manager) ResumeSession(sessionID string) (string, error) {
	cp, err := m.cpStore.LatestForSession(sessionID)
	if err != nil {
		return "", apierr.NotFoundf("no checkpoints for session %s", sessionID)
	}
	return m.resumeFromCheckpoint(*cp)
}

func (m *Manager) resumeFromCheckpoint(cp model.Checkpoint) (string, error) {
	newSessionID := uuid.NewString()

	exporter, err := export.New(m.cfg.ExportDir, newSessionID, cp.Request)
	if err != nil {
		return "", apierr.Internalf(err, "create exporter for resumed session %s", newSessionID)
	}
	if err := exporter.RestoreFromCheckpoint(cp.TraceState.ConnectionsFound); err != nil {
		log.Printf("[Session] export restore failed for %s: %v", newSessionID, err)
	}

	e := &entry{
		session: model.Session{
			SessionID:           newSessionID,
			Status:              model.StatusRunning,
			Request:             cp.Request,
			EffectiveBlockRange: cp.EffectiveBlockRange,
			TraceState:          cp.TraceState,
			StartedAt:           time.Now(),
			Exports:             exporter.Paths(),
		},
		exporter: exporter,
		done:     make(chan struct{}),
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	m.mu.Lock()
	m.sessions[newSessionID] = e
	m.mu.Unlock()

	prior := cp.TraceState
	go m.runTraversal(taskCtx, e, &prior)

	cpr := checkpointer.New(m.cpStore, m, m.cfg.CheckpointInterval)
	go cpr.Run(taskCtx, newSessionID)

	m.recordEvent(newSessionID, "resumed", fmt.Sprintf("from %s/%s", cp.SessionID, cp.CheckpointID))
	log.Printf("[Session] resumed %s from %s/%s into new session", newSessionID, cp.SessionID, cp.CheckpointID)
	return newSessionID, nil
}

// Delete cancels a running session (bounded by a grace period), then drops
// it from the registry.
func (m *Manager) Delete(sessionID string) error {
	e, ok := m.get(sessionID)
	if !ok {
		return apierr.NotFoundf("session %s not found", sessionID)
	}

	e.mu.RLock()
	running := e.session.Status == model.StatusRunning
	e.mu.RUnlock()

	if running {
		e.cancel()
		select {
		case <-e.done:
		case <-time.After(deleteGracePeriod):
			log.Printf("[Session] grace period elapsed abandoning %s", sessionID)
		}
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// ListCheckpoints enumerates a session's checkpoints, most recent first.
func (m *Manager) ListCheckpoints(sessionID string) ([]model.Checkpoint, error) {
	all, err := m.cpStore.List(sessionID)
	if err != nil {
		return nil, apierr.Internalf(err, "list checkpoints for %s", sessionID)
	}
	return all, nil
}

// DeleteCheckpoint removes one checkpoint.
func (m *Manager) DeleteCheckpoint(sessionID, checkpointID string) error {
	if err := m.cpStore.Delete(sessionID, checkpointID); err != nil {
		return apierr.NotFoundf("checkpoint %s/%s not found", sessionID, checkpointID)
	}
	return nil
}

// CleanupCheckpoints retains only the newest checkpoint per session.
func (m *Manager) CleanupCheckpoints(sessionID string) (int, error) {
	n, err := m.cpStore.Cleanup(sessionID)
	if err != nil {
		return 0, apierr.Internalf(err, "cleanup checkpoints for %s", sessionID)
	}
	return n, nil
}

func (m *Manager) get(sessionID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	return e, ok
}
