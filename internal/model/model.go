// Package model holds the data types shared across every component of the
// tracer: the normalized transaction shape, the traversal's path/visited
// bookkeeping, and the session/checkpoint records.
package model

import "time"

// TxIn is one input of a Normalized Transaction. Address is empty when the
// previous output could not be resolved to an address.
type TxIn struct {
	Txid    string `json:"txid" msgpack:"txid"`
	Vout    uint32 `json:"vout" msgpack:"vout"`
	Address string `json:"address" msgpack:"address"`
	Value   int64  `json:"value" msgpack:"value"`
}

// TxOut is one output of a Normalized Transaction.
type TxOut struct {
	Address string `json:"address" msgpack:"address"`
	Value   int64  `json:"value" msgpack:"value"`
}

// Transaction is the one normalized shape the core consumes. It is treated
// as an immutable value record; the core never mutates it.
type Transaction struct {
	Txid        string  `json:"txid" msgpack:"txid"`
	BlockHeight *int64  `json:"blockHeight,omitempty" msgpack:"blockHeight,omitempty"`
	Inputs      []TxIn  `json:"inputs" msgpack:"inputs"`
	Outputs     []TxOut `json:"outputs" msgpack:"outputs"`
}

// Direction is which Address-Set a BFS half started from.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Path is an ordered, non-repeating sequence of addresses.
type Path []string

// Clone returns a copy of p so callers may safely append to it independently.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// VisitedMap maps an address to the Path from its direction's seed to it.
type VisitedMap map[string]Path

// QueueItem is one pending BFS item.
type QueueItem struct {
	Address string
	Depth   int
	Path    Path
}

// Queue is a FIFO of QueueItem. It is a plain slice; Dequeue pops the head.
type Queue []QueueItem

func (q *Queue) Enqueue(item QueueItem) {
	*q = append(*q, item)
}

func (q *Queue) Dequeue() (QueueItem, bool) {
	if len(*q) == 0 {
		return QueueItem{}, false
	}
	item := (*q)[0]
	*q = (*q)[1:]
	return item, true
}

func (q Queue) Empty() bool { return len(q) == 0 }

// Connection is a discovered path from some a in A to some b in B.
type Connection struct {
	Source      string    `json:"source" msgpack:"source"`
	Target      string    `json:"target" msgpack:"target"`
	Path        Path      `json:"path" msgpack:"path"`
	PathLength  int       `json:"pathLength" msgpack:"pathLength"`
	DiscoveredAt time.Time `json:"discoveredAt" msgpack:"discoveredAt"`
}

// Key returns the (source,target) dedup key for a Connection.
func (c Connection) Key() string { return c.Source + "->" + c.Target }

// BlockRange is an inclusive [Lo,Hi] bound. Nil means "not specified" —
// per spec.md §9, an unspecified bound is never treated as zero.
type BlockRange struct {
	Lo *int64 `json:"lo,omitempty" msgpack:"lo,omitempty"`
	Hi *int64 `json:"hi,omitempty" msgpack:"hi,omitempty"`
}

// TraceState is the checkpointable substructure of a Session.
type TraceState struct {
	VisitedForward  VisitedMap   `json:"visitedForward" msgpack:"visitedForward"`
	VisitedBackward VisitedMap   `json:"visitedBackward" msgpack:"visitedBackward"`
	QueuedForward   Queue        `json:"queuedForward" msgpack:"queuedForward"`
	QueuedBackward  Queue        `json:"queuedBackward" msgpack:"queuedBackward"`
	ConnectionsFound []Connection `json:"connectionsFound" msgpack:"connectionsFound"`
	SearchDepth     int          `json:"searchDepth" msgpack:"searchDepth"`
	Status          string       `json:"status" msgpack:"status"`
}

// Clone produces a deep, independent copy of a TraceState snapshot, used to
// publish a consistent read-only view after each processed address.
func (t TraceState) Clone() TraceState {
	out := TraceState{
		VisitedForward:  make(VisitedMap, len(t.VisitedForward)),
		VisitedBackward: make(VisitedMap, len(t.VisitedBackward)),
		QueuedForward:   make(Queue, len(t.QueuedForward)),
		QueuedBackward:  make(Queue, len(t.QueuedBackward)),
		ConnectionsFound: make([]Connection, len(t.ConnectionsFound)),
		SearchDepth:     t.SearchDepth,
		Status:          t.Status,
	}
	for k, v := range t.VisitedForward {
		out.VisitedForward[k] = v.Clone()
	}
	for k, v := range t.VisitedBackward {
		out.VisitedBackward[k] = v.Clone()
	}
	copy(out.QueuedForward, t.QueuedForward)
	copy(out.QueuedBackward, t.QueuedBackward)
	copy(out.ConnectionsFound, t.ConnectionsFound)
	return out
}

// HasConnection reports whether a connection with the same (source,target)
// is already present, enforcing I3 (at most one emission per pair).
func (t TraceState) HasConnection(source, target string) bool {
	for _, c := range t.ConnectionsFound {
		if c.Source == source && c.Target == target {
			return true
		}
	}
	return false
}

// Status values for a Session.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusResumed   = "resumed"
)

// Traversal sub-status values, stored on TraceState.Status.
const (
	SubStatusConnected    = "connected"
	SubStatusNoConnection = "no_connection"
	SubStatusInterrupted  = "interrupted"
)

// Request describes the parameters of a new session.
type Request struct {
	SeedsA        []string    `json:"seedsA" msgpack:"seedsA"`
	SeedsB        []string    `json:"seedsB" msgpack:"seedsB"`
	MaxDepth      int         `json:"maxDepth" msgpack:"maxDepth"`
	UserBlockRange BlockRange `json:"userBlockRange" msgpack:"userBlockRange"`
}

// Session is a record of one traversal's lifecycle.
type Session struct {
	SessionID           string     `json:"sessionId" msgpack:"sessionId"`
	Status              string     `json:"status" msgpack:"status"`
	Request             Request    `json:"request" msgpack:"request"`
	EffectiveBlockRange BlockRange `json:"effectiveBlockRange" msgpack:"effectiveBlockRange"`
	TraceState          TraceState `json:"traceState" msgpack:"traceState"`
	StartedAt           time.Time  `json:"startedAt" msgpack:"startedAt"`
	LastCheckpointTime  time.Time  `json:"lastCheckpointTime,omitempty" msgpack:"lastCheckpointTime,omitempty"`
	CheckpointID        string     `json:"checkpointId,omitempty" msgpack:"checkpointId,omitempty"`
	Exports             []string   `json:"exports,omitempty" msgpack:"exports,omitempty"`
	Error               string     `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Checkpoint reasons.
const (
	ReasonPeriodic = "periodic"
	ReasonManual   = "manual"
	ReasonCancel   = "cancel"
)

// CurrentSchemaVersion is the schema_version written by this build. Bump it
// and add an upgrader whenever TraceState's on-disk shape changes.
const CurrentSchemaVersion = 1

// Checkpoint is an immutable, versioned, durable snapshot of trace_state.
type Checkpoint struct {
	SchemaVersion       int        `msgpack:"schemaVersion"`
	SessionID           string     `msgpack:"sessionId"`
	CheckpointID        string     `msgpack:"checkpointId"`
	CreatedAt           time.Time  `msgpack:"createdAt"`
	Reason              string     `msgpack:"reason"`
	Request             Request    `msgpack:"request"`
	EffectiveBlockRange BlockRange `msgpack:"effectiveBlockRange"`
	ProgressSummary     string     `msgpack:"progressSummary"`
	TraceState          TraceState `msgpack:"traceState"`
}
