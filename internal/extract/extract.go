// Package extract implements the Address Extractor (C3): a pure function
// from a Normalized Transaction to its input and output address sets.
package extract

import "github.com/rawblock/linkfinder/internal/model"

// Addresses returns the deduplicated input and output addresses of tx, in
// the tx's declared positional order. Empty/sentinel addresses are dropped.
func Addresses(tx model.Transaction) (inputs []string, outputs []string) {
	inputs = dedupOrdered(tx.Inputs, func(i model.TxIn) string { return i.Address })
	outputs = dedupOrdered(tx.Outputs, func(o model.TxOut) string { return o.Address })
	return inputs, outputs
}

func dedupOrdered[T any](items []T, addr func(T) string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		a := addr(it)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
