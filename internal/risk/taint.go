package risk

import "math"

// TaintMap is a mapping from address to accumulated taint level in [0,1].
// It is seeded from a Watchlist's known-illicit categories and consulted
// when annotating a discovered Connection's path with a risk score.
type TaintMap map[string]float64

// categoryTaint assigns a base taint level per watchlist category. Unknown
// categories default to a moderate level rather than zero, since any
// watchlisted address is under active investigation for a reason.
var categoryTaint = map[string]float64{
	"mixer":   0.9,
	"suspect": 0.7,
	"exchange": 0.1,
}

const defaultCategoryTaint = 0.5

// SeedFromWatchlist builds a TaintMap from every address on wl, taking the
// highest taint level when an address appears multiple times.
func SeedFromWatchlist(wl *Watchlist) TaintMap {
	tm := make(TaintMap)
	for _, entry := range wl.ListAll() {
		level, ok := categoryTaint[entry.Category]
		if !ok {
			level = defaultCategoryTaint
		}
		if current, exists := tm[entry.Address]; !exists || level > current {
			tm[entry.Address] = level
		}
	}
	return tm
}

// ConnectionRisk is the risk annotation attached to one discovered
// Connection's path.
type ConnectionRisk struct {
	RiskScore      float64  `json:"riskScore"`
	RiskLevel      string   `json:"riskLevel"`
	HopsFromSource int      `json:"hopsFromSource"`
	TaintedHops    []string `json:"taintedHops,omitempty"`
}

// AssessPath decays the taint level of every tainted address on path by its
// hop distance to the nearer end of the path and keeps the highest result
// (HopsFromSource is that address's distance), mirroring the haircut model's
// "farther is less risky" intuition without needing per-tx value data that
// a bare address path doesn't carry.
func AssessPath(tm TaintMap, path []string) ConnectionRisk {
	bestTaint := 0.0
	bestHops := -1
	var taintedHops []string

	for i, addr := range path {
		level, tainted := tm[addr]
		if !tainted || level <= 0 {
			continue
		}
		taintedHops = append(taintedHops, addr)

		hopsFromStart := i
		hopsFromEnd := len(path) - 1 - i
		hops := hopsFromStart
		if hopsFromEnd < hops {
			hops = hopsFromEnd
		}

		decayed := decay(level, hops)
		if decayed > bestTaint {
			bestTaint = decayed
			bestHops = hops
		}
	}

	return ConnectionRisk{
		RiskScore:      math.Round(bestTaint*1000) / 1000,
		RiskLevel:      classifyRisk(bestTaint),
		HopsFromSource: bestHops,
		TaintedHops:    taintedHops,
	}
}

func decay(level float64, hops int) float64 {
	if hops <= 0 {
		return level
	}
	return level * math.Pow(0.85, float64(hops))
}

func classifyRisk(score float64) string {
	switch {
	case score <= 0.01:
		return "clean"
	case score <= 0.10:
		return "low"
	case score <= 0.25:
		return "medium"
	case score <= 0.50:
		return "high"
	default:
		return "critical"
	}
}
