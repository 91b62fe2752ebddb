package verify

import (
	"context"
	"testing"

	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/filter"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/traversal"
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

type noCache struct{}

func (noCache) Get(address string, blockRange model.BlockRange) ([]model.Transaction, bool) {
	return nil, false
}
func (noCache) Put(address string, blockRange model.BlockRange, txs []model.Transaction) {}

func defaultFilter() *filter.Filter {
	return filter.New(config.Config{
		SkipDistributionMaxInputs:  2,
		SkipDistributionMinOutputs: 100,
		SkipMixerInputThreshold:    20,
		SkipMixerOutputThreshold:   20,
		MaxInputAddressesPerTx:     10,
		MaxOutputAddressesPerTx:    10,
	}, nil)
}

// seedState mirrors the Engine's own fresh-state construction for a
// depth-0 checkpoint: each seed address visited with a path of just itself and
// queued for its first expansion.
func seedState(seedsA, seedsB []string) model.TraceState {
	state := model.TraceState{
		VisitedForward:  make(model.VisitedMap),
		VisitedBackward: make(model.VisitedMap),
	}
	for _, a := range seedsA {
		p := model.Path{a}
		state.VisitedForward[a] = p
		state.QueuedForward.Enqueue(model.QueueItem{Address: a, Depth: 0, Path: p})
	}
	for _, b := range seedsB {
		p := model.Path{b}
		state.VisitedBackward[b] = p
		state.QueuedBackward.Enqueue(model.QueueItem{Address: b, Depth: 0, Path: p})
	}
	return state
}

func TestCheckResumeEquivalenceAgrees(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{
		"X": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}}},
		"M1": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}},
			{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
		"Y": {{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
	}}

	engine := traversal.New(src, noCache{}, defaultFilter())
	v := New(engine)

	prior := seedState([]string{"X"}, []string{"Y"})
	report := v.CheckResumeEquivalence(context.Background(), []string{"X"}, []string{"Y"}, 3, model.BlockRange{}, &prior)

	if !report.Equivalent {
		t.Fatalf("expected resume to be equivalent, got divergences: %v", report.Divergences)
	}
	if report.UninterruptedCount != report.ResumedCount {
		t.Fatalf("connection counts differ: uninterrupted=%d resumed=%d", report.UninterruptedCount, report.ResumedCount)
	}
	if report.UninterruptedCount == 0 {
		t.Fatal("expected at least one connection in both runs")
	}
}

func TestCheckResumeEquivalenceDetectsDivergence(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{
		"X": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
		"Y": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
	}}

	engine := traversal.New(src, noCache{}, defaultFilter())
	v := New(engine)

	// A prior state seeded from unrelated addresses can never reach the
	// same connections as the real uninterrupted run starting from X/Y.
	prior := seedState([]string{"unrelated-a"}, []string{"unrelated-b"})
	report := v.CheckResumeEquivalence(context.Background(), []string{"X"}, []string{"Y"}, 3, model.BlockRange{}, &prior)

	if report.Equivalent {
		t.Fatal("expected divergence between an unrelated prior state and the real run")
	}
}
