package session

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/linkfinder/internal/checkpoint"
	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/filter"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/traversal"
	"github.com/rawblock/linkfinder/internal/txcache"
)

type stubSource struct {
	txsByAddr map[string][]model.Transaction
}

func (s *stubSource) GetAddressTransactions(ctx context.Context, address string, blockRange model.BlockRange) ([]model.Transaction, error) {
	return s.txsByAddr[address], nil
}

func (s *stubSource) GetAddressBlockRange(ctx context.Context, address string) (*int64, *int64, error) {
	return nil, nil, nil
}

func testManager(t *testing.T, src *stubSource) *Manager {
	t.Helper()
	cfg := config.Config{
		MaxDepth:                   5,
		SkipDistributionMaxInputs:  2,
		SkipDistributionMinOutputs: 100,
		SkipMixerInputThreshold:    20,
		SkipMixerOutputThreshold:   20,
		MaxInputAddressesPerTx:     10,
		MaxOutputAddressesPerTx:    10,
		CheckpointInterval:         time.Hour,
		CheckpointDir:              t.TempDir(),
		ExportDir:                  t.TempDir(),
	}
	cache := txcache.New(1000, time.Minute)
	f := filter.New(cfg, nil)
	engine := traversal.New(src, cache, f)
	cpStore, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		t.Fatalf("checkpoint.New: %v", err)
	}
	return New(src, engine, cpStore, cfg)
}

func waitCompleted(t *testing.T, m *Manager, sessionID string) model.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, err := m.Status(sessionID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if s.Status == model.StatusCompleted || s.Status == model.StatusCancelled || s.Status == model.StatusFailed {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach a terminal status in time", sessionID)
	return model.Session{}
}

func TestStartAndComplete(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{}}
	m := testManager(t, src)

	id, err := m.Start(context.Background(), model.Request{SeedsA: []string{"X"}, SeedsB: []string{"X"}, MaxDepth: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	s := waitCompleted(t, m, id)
	if s.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want completed", s.Status)
	}
	if len(s.TraceState.ConnectionsFound) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(s.TraceState.ConnectionsFound))
	}

	if _, err := m.Results(id); err != nil {
		t.Fatalf("Results: %v", err)
	}
}

func TestStartRejectsEmptySets(t *testing.T) {
	m := testManager(t, &stubSource{})
	if _, err := m.Start(context.Background(), model.Request{SeedsA: nil, SeedsB: []string{"Y"}, MaxDepth: 1}); err == nil {
		t.Fatal("expected bad_request error for empty A")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{}}
	m := testManager(t, src)

	id, err := m.Start(context.Background(), model.Request{SeedsA: []string{"X"}, SeedsB: []string{"Y"}, MaxDepth: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitCompleted(t, m, id)

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel on a completed session should be a no-op, got: %v", err)
	}
	if err := m.Cancel(id); err != nil {
		t.Fatalf("second Cancel should also be a no-op, got: %v", err)
	}
}

func TestResultsUnknownSession(t *testing.T) {
	m := testManager(t, &stubSource{})
	if _, err := m.Results("does-not-exist"); err == nil {
		t.Fatal("expected not_found for unknown session")
	}
}
