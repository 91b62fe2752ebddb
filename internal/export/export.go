// Package export implements the Incremental Exporter (C9): a tabular (CSV)
// file and a structured (JSON) file, both appended to as each Connection is
// discovered. Files are named after the session id, so a resumed session
// (which gets a new id) writes its own pair rather than the original's.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/rawblock/linkfinder/internal/model"
)

var csvHeader = []string{"source", "target", "path", "path_length", "discovered_at"}

// structuredDoc is the structured file's top-level shape (§6).
type structuredDoc struct {
	SessionID        string             `json:"session_id"`
	Request          model.Request      `json:"request"`
	ConnectionsFound []model.Connection `json:"connections_found"`
	Summary          summary            `json:"summary"`
}

type summary struct {
	TotalConnections int    `json:"totalConnections"`
	Status           string `json:"status"`
}

// Exporter owns one session's tabular and structured files. Writes are
// serialized per session by mu; cross-session files are independent.
type Exporter struct {
	mu        sync.Mutex
	csvPath   string
	jsonPath  string
	sessionID string
	request   model.Request
	seen      map[string]bool
	doc       structuredDoc
}

// New creates the pair of export files for sessionID and returns an
// Exporter ready to accept connections. An existing CSV file for the same
// id is appended to; the JSON file is rewritten from this Exporter's own
// connections only, and rows already in an existing CSV are not deduplicated.
func New(dir, sessionID string, request model.Request) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create dir: %w", err)
	}

	e := &Exporter{
		csvPath:   filepath.Join(dir, fmt.Sprintf("connections_%s.csv", sessionID)),
		jsonPath:  filepath.Join(dir, fmt.Sprintf("connections_%s.json", sessionID)),
		sessionID: sessionID,
		request:   request,
		seen:      make(map[string]bool),
		doc: structuredDoc{
			SessionID: sessionID,
			Request:   request,
		},
	}

	if err := e.ensureCSVHeader(); err != nil {
		return nil, err
	}
	return e, nil
}

// RestoreFromCheckpoint re-appends connections already present in a loaded
// checkpoint, idempotently by (source,target) — resuming twice must never
// duplicate a row (P7).
func (e *Exporter) RestoreFromCheckpoint(connections []model.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range connections {
		if e.seen[c.Key()] {
			continue
		}
		if err := e.appendLocked(c); err != nil {
			return err
		}
	}
	return nil
}

// Append is the connection_cb hook: write one CSV row, then atomically
// rewrite the structured file with the connection folded in.
func (e *Exporter) Append(c model.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seen[c.Key()] {
		return nil
	}
	return e.appendLocked(c)
}

func (e *Exporter) appendLocked(c model.Connection) error {
	if err := e.appendCSVRow(c); err != nil {
		return err
	}
	e.seen[c.Key()] = true
	e.doc.ConnectionsFound = append(e.doc.ConnectionsFound, c)
	return e.rewriteJSON()
}

// Finalize writes the trailer (summary statistics) on session completion.
func (e *Exporter) Finalize(status string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doc.Summary = summary{TotalConnections: len(e.doc.ConnectionsFound), Status: status}
	return e.rewriteJSON()
}

func (e *Exporter) ensureCSVHeader() error {
	if _, err := os.Stat(e.csvPath); err == nil {
		return nil // already exists, appended to without a second header
	}
	f, err := os.Create(e.csvPath)
	if err != nil {
		return fmt.Errorf("export: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	return w.Write(csvHeader)
}

func (e *Exporter) appendCSVRow(c model.Connection) error {
	f, err := os.OpenFile(e.csvPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("export: open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	row := []string{
		c.Source,
		c.Target,
		joinPath(c.Path),
		fmt.Sprintf("%d", c.PathLength),
		c.DiscoveredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("export: write csv row: %w", err)
	}
	log.Printf("[Export] csv row appended: %s -> %s", c.Source, c.Target)
	return nil
}

// rewriteJSON writes the structured file via temp-then-rename so readers
// never observe a torn document, even mid-write.
func (e *Exporter) rewriteJSON() error {
	data, err := json.MarshalIndent(e.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal json: %w", err)
	}

	tmp := e.jsonPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("export: write json temp: %w", err)
	}
	if err := os.Rename(tmp, e.jsonPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: rename json: %w", err)
	}
	log.Printf("[Export] json saved: %s", e.jsonPath)
	return nil
}

func joinPath(p model.Path) string {
	out := ""
	for i, a := range p {
		if i > 0 {
			out += "|"
		}
		out += a
	}
	return out
}

// Paths returns the two file paths this exporter owns, for Session.Exports.
func (e *Exporter) Paths() []string {
	return []string{e.csvPath, e.jsonPath}
}
