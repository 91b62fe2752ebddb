// Package probe implements the Block-range Probe (C10): a best-effort
// pre-pass that narrows the user-requested block range using each seed
// address's earliest/latest observed activity.
package probe

import (
	"context"
	"log"
	"strconv"

	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/txsource"
)

// Narrow computes the effective block range for a session. A nil bound in
// userRange means "not specified", never zero (spec.md §9); an address the
// source has no data for contributes no bound, so the probe stays correct
// even when it finds nothing.
func Narrow(ctx context.Context, source txsource.Source, seedsA, seedsB []string, userRange model.BlockRange) model.BlockRange {
	var minEarliestA, maxLatestB *int64

	for _, a := range seedsA {
		earliest, _, err := source.GetAddressBlockRange(ctx, a)
		if err != nil || earliest == nil {
			continue
		}
		if minEarliestA == nil || *earliest < *minEarliestA {
			minEarliestA = earliest
		}
	}
	for _, b := range seedsB {
		_, latest, err := source.GetAddressBlockRange(ctx, b)
		if err != nil || latest == nil {
			continue
		}
		if maxLatestB == nil || *latest > *maxLatestB {
			maxLatestB = latest
		}
	}

	effective := model.BlockRange{Lo: userRange.Lo, Hi: userRange.Hi}
	effective.Lo = tighterLo(userRange.Lo, minEarliestA)
	effective.Hi = tighterHi(userRange.Hi, maxLatestB)

	log.Printf("[Probe] effective range: lo=%s hi=%s", fmtPtr(effective.Lo), fmtPtr(effective.Hi))
	return effective
}

// tighterLo returns max(userLo, probed), inclusive, treating a nil operand
// as "no bound from that source".
func tighterLo(userLo, probed *int64) *int64 {
	if userLo == nil {
		return probed
	}
	if probed == nil {
		return userLo
	}
	if *probed > *userLo {
		return probed
	}
	return userLo
}

// tighterHi returns min(userHi, probed), inclusive.
func tighterHi(userHi, probed *int64) *int64 {
	if userHi == nil {
		return probed
	}
	if probed == nil {
		return userHi
	}
	if *probed < *userHi {
		return probed
	}
	return userHi
}

func fmtPtr(p *int64) string {
	if p == nil {
		return "none"
	}
	return strconv.FormatInt(*p, 10)
}
