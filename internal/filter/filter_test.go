package filter

import (
	"testing"

	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/risk"
)

func testConfig() config.Config {
	return config.Config{
		SkipDistributionMaxInputs:  2,
		SkipDistributionMinOutputs: 100,
		SkipMixerInputThreshold:    20,
		SkipMixerOutputThreshold:   20,
		MaxInputAddressesPerTx:     10,
		MaxOutputAddressesPerTx:    10,
	}
}

func TestKeepDropsAirdrop(t *testing.T) {
	f := New(testConfig(), nil)
	outs := make([]model.TxOut, 200)
	for i := range outs {
		outs[i] = model.TxOut{Address: "addr"}
	}
	tx := model.Transaction{
		Txid:    "airdrop",
		Inputs:  []model.TxIn{{Address: "X"}},
		Outputs: outs,
	}
	if f.Keep(tx) {
		t.Fatal("expected airdrop-shaped tx to be dropped")
	}
}

func TestKeepDropsMixer(t *testing.T) {
	f := New(testConfig(), nil)
	ins := make([]model.TxIn, 25)
	outs := make([]model.TxOut, 25)
	tx := model.Transaction{Txid: "mix", Inputs: ins, Outputs: outs}
	if f.Keep(tx) {
		t.Fatal("expected mixer-shaped tx to be dropped")
	}
}

func TestKeepDropsMarker(t *testing.T) {
	f := New(testConfig(), nil)
	tx := model.Transaction{
		Txid:    "wasabi-round-12",
		Inputs:  []model.TxIn{{Address: "X"}},
		Outputs: []model.TxOut{{Address: "Y"}},
	}
	if f.Keep(tx) {
		t.Fatal("expected tx with known mixer marker to be dropped")
	}
}

func TestKeepOrdinaryTx(t *testing.T) {
	f := New(testConfig(), nil)
	tx := model.Transaction{
		Txid:    "ordinary",
		Inputs:  []model.TxIn{{Address: "X"}},
		Outputs: []model.TxOut{{Address: "Y"}},
	}
	if !f.Keep(tx) {
		t.Fatal("expected ordinary tx to be kept")
	}
}

func TestKeepDropsWatchlistedMixer(t *testing.T) {
	wl := risk.NewWatchlist()
	wl.Add("known-mixer-addr", "mixer", "ChipMixer clone", "case-42")
	f := New(testConfig(), wl)
	tx := model.Transaction{
		Txid:    "ordinary-shaped",
		Inputs:  []model.TxIn{{Address: "X"}},
		Outputs: []model.TxOut{{Address: "known-mixer-addr"}},
	}
	if f.Keep(tx) {
		t.Fatal("expected tx touching a watchlisted mixer address to be dropped")
	}
}

func TestKeepIgnoresNonMixerWatchlistEntry(t *testing.T) {
	wl := risk.NewWatchlist()
	wl.Add("suspect-addr", "suspect", "under investigation", "case-7")
	f := New(testConfig(), wl)
	tx := model.Transaction{
		Txid:    "ordinary",
		Inputs:  []model.TxIn{{Address: "X"}},
		Outputs: []model.TxOut{{Address: "suspect-addr"}},
	}
	if !f.Keep(tx) {
		t.Fatal("expected tx touching a non-mixer watchlist entry to be kept")
	}
}

func TestCaps(t *testing.T) {
	f := New(testConfig(), nil)
	addrs := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	capped := f.CapInputs(addrs)
	if len(capped) != 10 {
		t.Fatalf("expected 10 capped inputs, got %d", len(capped))
	}
	if capped[0] != "a" || capped[9] != "j" {
		t.Fatalf("cap did not preserve declared order: %v", capped)
	}
}
