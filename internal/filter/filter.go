// Package filter implements the Transaction Filter (C4): the keep/drop
// decision and the per-tx fan-out caps applied at traversal time.
package filter

import (
	"fmt"
	"strings"

	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/risk"
)

// knownMixerMarkers are recognized mixer-service labels. A match against a
// string representation of the tx drops it regardless of input/output counts.
var knownMixerMarkers = []string{
	"wasabi", "whirlpool", "samourai", "joinmarket", "coinjoin",
}

// Filter applies the C4 rules against config-driven thresholds, plus the
// investigation team's own watchlist of addresses already confirmed to be
// mixer services.
type Filter struct {
	cfg       config.Config
	watchlist *risk.Watchlist
}

// New builds a Filter. watchlist may be nil, in which case Keep falls back
// to the shape-based heuristics alone.
func New(cfg config.Config, watchlist *risk.Watchlist) *Filter {
	return &Filter{cfg: cfg, watchlist: watchlist}
}

// Keep reports whether tx should be traversed. false means drop.
func (f *Filter) Keep(tx model.Transaction) bool {
	nIn, nOut := len(tx.Inputs), len(tx.Outputs)

	if nIn <= f.cfg.SkipDistributionMaxInputs && nOut >= f.cfg.SkipDistributionMinOutputs {
		return false
	}
	if nIn >= f.cfg.SkipMixerInputThreshold && nOut >= f.cfg.SkipMixerOutputThreshold {
		return false
	}
	if hasKnownMixerMarker(tx) {
		return false
	}
	if f.watchlist != nil && f.touchesKnownMixer(tx) {
		return false
	}
	return true
}

// touchesKnownMixer reports whether any input or output address in tx is
// registered on the watchlist under the "mixer" category.
func (f *Filter) touchesKnownMixer(tx model.Transaction) bool {
	for _, in := range tx.Inputs {
		if f.watchlist.IsKnownMixer(in.Address) {
			return true
		}
	}
	for _, out := range tx.Outputs {
		if f.watchlist.IsKnownMixer(out.Address) {
			return true
		}
	}
	return false
}

// CapInputs truncates an already-extracted input address list to the
// configured per-tx cap, preserving declared order.
func (f *Filter) CapInputs(addrs []string) []string {
	return capAddrs(addrs, f.cfg.MaxInputAddressesPerTx)
}

// CapOutputs truncates an already-extracted output address list to the
// configured per-tx cap, preserving declared order.
func (f *Filter) CapOutputs(addrs []string) []string {
	return capAddrs(addrs, f.cfg.MaxOutputAddressesPerTx)
}

func capAddrs(addrs []string, max int) []string {
	if max <= 0 || len(addrs) <= max {
		return addrs
	}
	return addrs[:max]
}

func hasKnownMixerMarker(tx model.Transaction) bool {
	repr := strings.ToLower(txRepr(tx))
	for _, marker := range knownMixerMarkers {
		if strings.Contains(repr, marker) {
			return true
		}
	}
	return false
}

// txRepr builds a cheap string representation of tx for marker matching,
// scanning only fields a data provider might use to embed a service label.
func txRepr(tx model.Transaction) string {
	var b strings.Builder
	b.WriteString(tx.Txid)
	for _, in := range tx.Inputs {
		fmt.Fprintf(&b, " %s", in.Address)
	}
	for _, out := range tx.Outputs {
		fmt.Fprintf(&b, " %s", out.Address)
	}
	return b.String()
}
