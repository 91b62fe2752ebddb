// Package traversal implements the Traversal Engine (C5): a bidirectional,
// breadth-first, bounded-depth search with per-direction visited maps and
// queues, emitting the first discovered Connection between address-set A
// and address-set B.
package traversal

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/linkfinder/internal/extract"
	"github.com/rawblock/linkfinder/internal/filter"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/txcache"
	"github.com/rawblock/linkfinder/internal/txsource"
)

// ProgressEvent is published after each processed address. The engine does
// not know about exporters or checkpointers; it only calls ProgressFunc.
type ProgressEvent struct {
	Direction  model.Direction
	Address    string
	TraceState model.TraceState
}

type ProgressFunc func(ProgressEvent)

// ConnectionFunc is invoked exactly once per emitted Connection,
// synchronously, before Run returns.
type ConnectionFunc func(model.Connection)

// Engine runs the bidirectional BFS. It holds no per-run state; all state
// lives in the TraceState passed to and returned from Run.
type Engine struct {
	source txsource.Source
	cache  txcache.Cache
	filter *filter.Filter
}

func New(source txsource.Source, cache txcache.Cache, filt *filter.Filter) *Engine {
	return &Engine{source: source, cache: cache, filter: filt}
}

// Result is what Run returns.
type Result struct {
	Status     string // SubStatusConnected, SubStatusNoConnection, or SubStatusInterrupted on cancellation
	TraceState model.TraceState
}

// Run executes find_connection (prior == nil) or resume (prior != nil).
// Both entry points share this one body per spec.md §4.3.
func (e *Engine) Run(
	ctx context.Context,
	seedsA, seedsB []string,
	maxDepth int,
	blockRange model.BlockRange,
	prior *model.TraceState,
	onProgress ProgressFunc,
	onConnection ConnectionFunc,
) Result {
	setA := toSet(seedsA)
	setB := toSet(seedsB)

	state := initState(seedsA, seedsB, prior)

	hit, interrupted := e.runHalf(ctx, model.Forward, &state, maxDepth, blockRange, setB, onProgress, onConnection)
	if !hit && !interrupted {
		hit, interrupted = e.runHalf(ctx, model.Backward, &state, maxDepth, blockRange, setA, onProgress, onConnection)
	}

	switch {
	case interrupted:
		state.Status = model.SubStatusInterrupted
	case hit:
		state.Status = model.SubStatusConnected
	default:
		state.Status = model.SubStatusNoConnection
	}
	return Result{Status: state.Status, TraceState: state}
}

func initState(seedsA, seedsB []string, prior *model.TraceState) model.TraceState {
	if prior != nil {
		return prior.Clone()
	}

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

// runHalf drains one direction's queue, returning (hit, interrupted). If the
// queue is already empty but the visited map is populated, the half has
// already completed (resume case) and is skipped. Cancellation is checked
// at the top of each iteration — the declared suspension point before the
// next Tx Cache/Source call — so a cancelled context stops the half
// without losing any already-enqueued work.
func (e *Engine) runHalf(
	ctx context.Context,
	dir model.Direction,
	state *model.TraceState,
	maxDepth int,
	blockRange model.BlockRange,
	oppositeSet map[string]bool,
	onProgress ProgressFunc,
	onConnection ConnectionFunc,
) (hit bool, interrupted bool) {
	queue, visited := e.directionState(state, dir)
	if queue.Empty() && len(*visited) > 0 {
		return false, false
	}

	for {
		if ctx.Err() != nil {
			e.writeBack(state, dir, *queue, *visited)
			return false, true
		}

		item, ok := queue.Dequeue()
		if !ok {
			break
		}

		if oppositeSet[item.Address] {
			e.emit(state, dir, item.Address, item.Path, onConnection)
			e.writeBack(state, dir, *queue, *visited)
			return true, false
		}

		if item.Depth == maxDepth {
			continue
		}

		txs := e.fetchFiltered(ctx, item.Address, blockRange)
		neighbors := neighborsOf(txs, dir, e.filter)

		for _, n := range neighbors {
			if _, seen := (*visited)[n]; seen {
				continue
			}
			newPath := append(item.Path.Clone(), n)

			if oppositeSet[n] {
				(*visited)[n] = newPath
				e.emit(state, dir, n, newPath, onConnection)
				e.writeBack(state, dir, *queue, *visited)
				return true, false
			}

			(*visited)[n] = newPath
			queue.Enqueue(model.QueueItem{Address: n, Depth: item.Depth + 1, Path: newPath})
		}

		if item.Depth+1 > state.SearchDepth {
			state.SearchDepth = item.Depth + 1
		}

		e.writeBack(state, dir, *queue, *visited)
		if onProgress != nil {
			onProgress(ProgressEvent{Direction: dir, Address: item.Address, TraceState: state.Clone()})
		}
	}

	e.writeBack(state, dir, *queue, *visited)
	return false, false
}

func (e *Engine) directionState(state *model.TraceState, dir model.Direction) (*model.Queue, *model.VisitedMap) {
	if dir == model.Forward {
		return &state.QueuedForward, &state.VisitedForward
	}
	return &state.QueuedBackward, &state.VisitedBackward
}

func (e *Engine) writeBack(state *model.TraceState, dir model.Direction, queue model.Queue, visited model.VisitedMap) {
	if dir == model.Forward {
		state.QueuedForward = queue
		state.VisitedForward = visited
		return
	}
	state.QueuedBackward = queue
	state.VisitedBackward = visited
}

// emit records a connection in trace_state (always, even if the callback
// fails) and invokes the callback exactly once, synchronously. For the
// backward half the path is reversed so it always reads source(A)->target(B).
func (e *Engine) emit(state *model.TraceState, dir model.Direction, hitAddr string, path model.Path, onConnection ConnectionFunc) {
	var source, target string
	var outPath model.Path

	if dir == model.Forward {
		source, target = path[0], hitAddr
		outPath = path
	} else {
		source, target = hitAddr, path[0]
		outPath = reverse(path)
	}

	if state.HasConnection(source, target) {
		return
	}

	conn := model.Connection{
		Source:       source,
		Target:       target,
		Path:         outPath,
		PathLength:   len(outPath),
		DiscoveredAt: time.Now(),
	}
	state.ConnectionsFound = append(state.ConnectionsFound, conn)
	if onConnection != nil {
		onConnection(conn)
	}
}

func reverse(p model.Path) model.Path {
	out := make(model.Path, len(p))
	for i, a := range p {
		out[len(p)-1-i] = a
	}
	return out
}

// fetchFiltered pulls a single address's transactions via cache-then-source
// (C2 -> C1) and applies the C4 keep/drop decision. A fetch failure for one
// address is logged and treated as "no transactions"; it is never retried
// here — retry is the Tx Source's own responsibility.
func (e *Engine) fetchFiltered(ctx context.Context, address string, blockRange model.BlockRange) []model.Transaction {
	if cached, ok := e.cache.Get(address, blockRange); ok {
		return cached
	}

	txs, err := e.source.GetAddressTransactions(ctx, address, blockRange)
	if err != nil {
		log.Printf("[Traversal] fetch failed for %s, treating as empty: %v", address, err)
		txs = nil
	}

	kept := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if e.filter.Keep(tx) {
			kept = append(kept, tx)
		}
	}

	e.cache.Put(address, blockRange, kept)
	return kept
}

// neighborsOf extracts and caps each tx's neighbor addresses in the order
// BFS layer determinism requires: outputs before inputs for forward,
// inputs before outputs for backward, then declared positional order. An
// address appearing as both input and output of the same tx is kept once.
func neighborsOf(txs []model.Transaction, dir model.Direction, f *filter.Filter) []string {
	var out []string
	for _, tx := range txs {
		inAddrs, outAddrs := extract.Addresses(tx)
		inAddrs = f.CapInputs(inAddrs)
		outAddrs = f.CapOutputs(outAddrs)

		seen := make(map[string]bool)
		var ordered []string
		if dir == model.Forward {
			ordered = append(outAddrs, inAddrs...)
		} else {
			ordered = append(inAddrs, outAddrs...)
		}
		for _, a := range ordered {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func toSet(addrs []string) map[string]bool {
	s := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		s[a] = true
	}
	return s
}
