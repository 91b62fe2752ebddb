// Package txsource defines the Tx Source boundary (C1): given an address
// and an optional block range, return a bounded, normalized sequence of
// transactions. Concrete implementations normalize heterogeneous
// provider-specific shapes at this boundary; the core never sees them.
package txsource

import (
	"context"

	"github.com/rawblock/linkfinder/internal/model"
)

// Source is the abstract Tx Source the Traversal Engine consumes. A Source
// must never return an error for a transient per-address failure: it
// surfaces a failure by returning an empty sequence after its own internal
// retry, per spec.md §6. Errors returned here are reserved for
// unrecoverable configuration problems (e.g. the client was never connected).
type Source interface {
	// GetAddressTransactions returns at most MAX_TRANSACTIONS_PER_ADDRESS
	// normalized transactions touching address, narrowed to [lo,hi] when
	// either bound is non-nil.
	GetAddressTransactions(ctx context.Context, address string, blockRange model.BlockRange) ([]model.Transaction, error)

	// GetAddressBlockRange returns the earliest and latest observed block
	// height for address, for use by the Block-range Probe (C10). Either
	// return value is nil when unknown.
	GetAddressBlockRange(ctx context.Context, address string) (earliest *int64, latest *int64, err error)
}
