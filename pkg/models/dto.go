// Package models holds the wire-level request/response shapes for the
// Control Plane HTTP API. These are distinct from internal/model, which is
// the core engine's working data model — dto.go exists so a JSON tag
// rename on the wire never forces a change to VisitedMap/Queue/TraceState.
package models

import "time"

// StartRequest is the POST /api/v1/sessions body.
type StartRequest struct {
	SeedsA   []string `json:"seedsA" binding:"required"`
	SeedsB   []string `json:"seedsB" binding:"required"`
	MaxDepth int      `json:"maxDepth" binding:"required"`
	BlockLo  *int64   `json:"blockLo,omitempty"`
	BlockHi  *int64   `json:"blockHi,omitempty"`
}

// StartResponse is returned from a successful start.
type StartResponse struct {
	SessionID string `json:"sessionId"`
}

// ConnectionDTO is one discovered connection on the wire.
type ConnectionDTO struct {
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Path         []string  `json:"path"`
	PathLength   int       `json:"pathLength"`
	DiscoveredAt time.Time `json:"discoveredAt"`
	RiskScore    float64   `json:"riskScore"`
	RiskLevel    string    `json:"riskLevel"`
}

// WatchlistEntryRequest is the POST /api/v1/watchlist body.
type WatchlistEntryRequest struct {
	Address  string `json:"address" binding:"required"`
	Category string `json:"category" binding:"required"`
	Label    string `json:"label"`
	CaseID   string `json:"caseId"`
}

// SessionDTO is the status/results payload for one session.
type SessionDTO struct {
	SessionID           string          `json:"sessionId"`
	Status              string          `json:"status"`
	SearchDepth         int             `json:"searchDepth"`
	ConnectionsFound    []ConnectionDTO `json:"connectionsFound"`
	EffectiveBlockLo    *int64          `json:"effectiveBlockLo,omitempty"`
	EffectiveBlockHi    *int64          `json:"effectiveBlockHi,omitempty"`
	StartedAt           time.Time       `json:"startedAt"`
	LastCheckpointTime  *time.Time      `json:"lastCheckpointTime,omitempty"`
	CheckpointID        string          `json:"checkpointId,omitempty"`
	Error               string          `json:"error,omitempty"`
}

// CheckpointDTO summarizes one stored checkpoint for listing.
type CheckpointDTO struct {
	SessionID       string    `json:"sessionId"`
	CheckpointID    string    `json:"checkpointId"`
	CreatedAt       time.Time `json:"createdAt"`
	Reason          string    `json:"reason"`
	ProgressSummary string    `json:"progressSummary"`
}

// ResumeRequest is the POST /api/v1/resume body (explicit form).
type ResumeRequest struct {
	SessionID    string `json:"sessionId" binding:"required"`
	CheckpointID string `json:"checkpointId" binding:"required"`
}

// ErrorResponse is the uniform error body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
