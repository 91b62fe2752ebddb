// Package verify exercises P5 (resume equivalence): it runs a traversal
// twice against the same deterministic Tx Source — once uninterrupted,
// once resumed from a caller-supplied prior trace state (the checkpoint a
// cancel would have produced; the verifier itself cancels nothing) — and
// reports whether the two runs agree on connections_found.
package verify

import (
	"context"
	"fmt"
	"log"

	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/traversal"
)

// Report captures the diff between an uninterrupted run and a
// cancel-then-resume run over the same inputs and Tx Source replay.
type Report struct {
	Equivalent         bool
	UninterruptedCount int
	ResumedCount       int
	Divergences        []string
}

// Verifier runs both traversals with a single shared Engine — the Engine
// itself holds no per-run state, so the same instance is safe to reuse.
type Verifier struct {
	engine *traversal.Engine
}

func New(engine *traversal.Engine) *Verifier {
	return &Verifier{engine: engine}
}

// CheckResumeEquivalence runs the uninterrupted traversal to completion,
// separately resumes from priorState (the checkpoint a cancel at some
// earlier point would have produced) to completion, and diffs the two
// connection sets by (source,target) key.
func (v *Verifier) CheckResumeEquivalence(
	ctx context.Context,
	seedsA, seedsB []string,
	maxDepth int,
	blockRange model.BlockRange,
	priorState *model.TraceState,
) Report {
	uninterrupted := v.engine.Run(ctx, seedsA, seedsB, maxDepth, blockRange, nil, nil, nil)
	resumed := v.engine.Run(ctx, seedsA, seedsB, maxDepth, blockRange, priorState, nil, nil)

	report := diff(uninterrupted.TraceState.ConnectionsFound, resumed.TraceState.ConnectionsFound)
	if !report.Equivalent {
		log.Printf("[Verify] resume DIVERGENCE: %v", report.Divergences)
	}
	return report
}

func diff(a, b []model.Connection) Report {
	setA := make(map[string]bool, len(a))
	for _, c := range a {
		setA[c.Key()] = true
	}
	setB := make(map[string]bool, len(b))
	for _, c := range b {
		setB[c.Key()] = true
	}

	var divergences []string
	for k := range setA {
		if !setB[k] {
			divergences = append(divergences, fmt.Sprintf("missing in resumed run: %s", k))
		}
	}
	for k := range setB {
		if !setA[k] {
			divergences = append(divergences, fmt.Sprintf("extra in resumed run: %s", k))
		}
	}

	return Report{
		Equivalent:         len(divergences) == 0,
		UninterruptedCount: len(a),
		ResumedCount:       len(b),
		Divergences:        divergences,
	}
}
