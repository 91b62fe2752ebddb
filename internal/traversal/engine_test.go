package traversal

import (
	"context"
	"testing"

	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/filter"
	"github.com/rawblock/linkfinder/internal/model"
)

// stubSource is a deterministic in-memory Tx Source keyed by address.
type stubSource struct {
	txsByAddr map[string][]model.Transaction
}

func (s *stubSource) GetAddressTransactions(ctx context.Context, address string, blockRange model.BlockRange) ([]model.Transaction, error) {
	return s.txsByAddr[address], nil
}

func (s *stubSource) GetAddressBlockRange(ctx context.Context, address string) (*int64, *int64, error) {
	return nil, nil, nil
}

// noCache never hits, forcing every call through the stub source.
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

func TestTrivialSelfLink(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{}}
	e := New(src, noCache{}, defaultFilter())

	res := e.Run(context.Background(), []string{"X"}, []string{"X"}, 1, model.BlockRange{}, nil, nil, nil)

	if res.Status != model.SubStatusConnected {
		t.Fatalf("status = %s, want connected", res.Status)
	}
	if len(res.TraceState.ConnectionsFound) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(res.TraceState.ConnectionsFound))
	}
	conn := res.TraceState.ConnectionsFound[0]
	if conn.Source != "X" || conn.Target != "X" || conn.PathLength != 1 {
		t.Fatalf("unexpected connection: %+v", conn)
	}
}

func TestOneHopViaSharedTx(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{
		"X": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
		"Y": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
	}}
	e := New(src, noCache{}, defaultFilter())

	res := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 1, model.BlockRange{}, nil, nil, nil)

	if res.Status != model.SubStatusConnected {
		t.Fatalf("status = %s, want connected", res.Status)
	}
	conn := res.TraceState.ConnectionsFound[0]
	if len(conn.Path) != 2 || conn.Path[0] != "X" || conn.Path[1] != "Y" {
		t.Fatalf("unexpected path: %v", conn.Path)
	}
}

func TestNoConnection(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{}}
	e := New(src, noCache{}, defaultFilter())

	res := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 5, model.BlockRange{}, nil, nil, nil)

	if res.Status != model.SubStatusNoConnection {
		t.Fatalf("status = %s, want no_connection", res.Status)
	}
	if len(res.TraceState.ConnectionsFound) != 0 {
		t.Fatalf("expected zero connections, got %d", len(res.TraceState.ConnectionsFound))
	}
	if got := res.TraceState.VisitedForward["X"]; len(got) != 1 || got[0] != "X" {
		t.Fatalf("visited_forward[X] = %v, want [X]", got)
	}
	if got := res.TraceState.VisitedBackward["Y"]; len(got) != 1 || got[0] != "Y" {
		t.Fatalf("visited_backward[Y] = %v, want [Y]", got)
	}
}

func TestFilterDropsAirdrop(t *testing.T) {
	outs := make([]model.TxOut, 200)
	for i := range outs {
		outs[i] = model.TxOut{Address: "filler"}
	}
	outs[0] = model.TxOut{Address: "Y"}

	tx := model.Transaction{Txid: "airdrop", Inputs: []model.TxIn{{Address: "X"}}, Outputs: outs}
	src := &stubSource{txsByAddr: map[string][]model.Transaction{"X": {tx}}}
	e := New(src, noCache{}, defaultFilter())

	res := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 1, model.BlockRange{}, nil, nil, nil)

	if res.Status != model.SubStatusNoConnection {
		t.Fatalf("status = %s, want no_connection (airdrop tx should be dropped)", res.Status)
	}
}

func TestMaxDepthBoundary(t *testing.T) {
	// X -> M1 -> M2 -> Y, a 3-hop path.
	src := &stubSource{txsByAddr: map[string][]model.Transaction{
		"X":  {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}}},
		"M1": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}},
			{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "M2"}}}},
		"M2": {{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "M2"}}},
			{Txid: "t3", Inputs: []model.TxIn{{Address: "M2"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
		"Y": {{Txid: "t3", Inputs: []model.TxIn{{Address: "M2"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
	}}

	e := New(src, noCache{}, defaultFilter())

	shallow := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 2, model.BlockRange{}, nil, nil, nil)
	if shallow.Status != model.SubStatusNoConnection {
		t.Fatalf("max_depth=2: status = %s, want no_connection", shallow.Status)
	}

	deep := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 3, model.BlockRange{}, nil, nil, nil)
	if deep.Status != model.SubStatusConnected {
		t.Fatalf("max_depth=3: status = %s, want connected", deep.Status)
	}
}

func TestResumeEquivalence(t *testing.T) {
	src := &stubSource{txsByAddr: map[string][]model.Transaction{
		"X":  {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}}},
		"M1": {{Txid: "t1", Inputs: []model.TxIn{{Address: "X"}}, Outputs: []model.TxOut{{Address: "M1"}}},
			{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
		"Y": {{Txid: "t2", Inputs: []model.TxIn{{Address: "M1"}}, Outputs: []model.TxOut{{Address: "Y"}}}},
	}}

	e := New(src, noCache{}, defaultFilter())
	uninterrupted := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 3, model.BlockRange{}, nil, nil, nil)

	// Simulate a cancel right after seeding (depth 0 only) by reusing the
	// engine's own fresh-state construction, then resuming from it.
	seeded := initState([]string{"X"}, []string{"Y"}, nil)
	resumed := e.Run(context.Background(), []string{"X"}, []string{"Y"}, 3, model.BlockRange{}, &seeded, nil, nil)

	if len(resumed.TraceState.ConnectionsFound) != len(uninterrupted.TraceState.ConnectionsFound) {
		t.Fatalf("resume produced %d connections, uninterrupted produced %d",
			len(resumed.TraceState.ConnectionsFound), len(uninterrupted.TraceState.ConnectionsFound))
	}
	if resumed.TraceState.ConnectionsFound[0].Key() != uninterrupted.TraceState.ConnectionsFound[0].Key() {
		t.Fatalf("resume produced a different connection than the uninterrupted run")
	}
}
