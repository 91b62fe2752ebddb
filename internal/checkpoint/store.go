// Package checkpoint implements the Checkpoint Store (C7): atomic,
// versioned snapshots of traversal state on disk, with listing and
// retrieval by (session, checkpoint) or by recency.
package checkpoint

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rawblock/linkfinder/internal/model"
)

const fileExt = ".cpkt"

// Store writes and reads Checkpoint records in a single directory, using
// the {session_id}_{checkpoint_id}.ext filename convention directly from
// the original implementation's CheckpointManager.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Write serializes record (with a freshly allocated checkpoint_id),
// writes it to a temp file in the same directory, then atomically renames
// it into place. A crash mid-write leaves either nothing or a fully valid
// file — never a partial one (P6).
func (s *Store) Write(record model.Checkpoint) (string, error) {
	record.CheckpointID = uuid.NewString()
	record.SchemaVersion = model.CurrentSchemaVersion

	data, err := msgpack.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("checkpoint: marshal: %w", err)
	}

	finalPath := s.path(record.SessionID, record.CheckpointID)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("checkpoint: rename: %w", err)
	}

	log.Printf("[Checkpoint] saved %s/%s (reason=%s)", record.SessionID, record.CheckpointID, record.Reason)
	return record.CheckpointID, nil
}

// Read deserializes a checkpoint, applying the upgrader chain when its
// schema_version is older than the current build's.
func (s *Store) Read(sessionID, checkpointID string) (*model.Checkpoint, error) {
	data, err := os.ReadFile(s.path(sessionID, checkpointID))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s/%s: %w", sessionID, checkpointID, err)
	}

	raw, err := decodeRaw(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s/%s: %w", sessionID, checkpointID, err)
	}

	record, err := upgrade(raw)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: upgrade %s/%s: %w", sessionID, checkpointID, err)
	}
	return record, nil
}

// entry is a lightweight listing row: the (session_id, checkpoint_id) pair
// recovered from the filename. List and LatestOverall do not use it; they
// decode every file and skip (and log) any that cannot be read.
type entry struct {
	SessionID    string
	CheckpointID string
	CreatedAt    int64 // unix nanos, for sort stability without re-parsing
}

// List returns every checkpoint for sessionID, sorted by created_at desc.
func (s *Store) List(sessionID string) ([]model.Checkpoint, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, sessionID+"_*"+fileExt))
	if err != nil {
		return nil, err
	}

	var out []model.Checkpoint
	for _, path := range matches {
		cp, err := s.readPath(path)
		if err != nil {
			log.Printf("[Checkpoint] skipping unreadable file %s: %v", path, err)
			continue
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// LatestOverall returns the most recently created checkpoint across every
// session in the store.
func (s *Store) LatestOverall() (*model.Checkpoint, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}

	var latest *model.Checkpoint
	for _, path := range matches {
		cp, err := s.readPath(path)
		if err != nil {
			log.Printf("[Checkpoint] skipping unreadable file %s: %v", path, err)
			continue
		}
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("checkpoint: no checkpoints found")
	}
	return latest, nil
}

// LatestForSession returns the most recent checkpoint for sessionID.
func (s *Store) LatestForSession(sessionID string) (*model.Checkpoint, error) {
	all, err := s.List(sessionID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("checkpoint: no checkpoints for session %s", sessionID)
	}
	return &all[0], nil
}

// Delete removes one checkpoint file.
func (s *Store) Delete(sessionID, checkpointID string) error {
	if err := os.Remove(s.path(sessionID, checkpointID)); err != nil {
		return fmt.Errorf("checkpoint: delete %s/%s: %w", sessionID, checkpointID, err)
	}
	log.Printf("[Checkpoint] deleted %s/%s", sessionID, checkpointID)
	return nil
}

// Cleanup retains only the newest checkpoint for sessionID, deleting the
// rest. Returns the count deleted.
func (s *Store) Cleanup(sessionID string) (int, error) {
	all, err := s.List(sessionID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i, cp := range all {
		if i == 0 {
			continue // newest, retained
		}
		if err := s.Delete(sessionID, cp.CheckpointID); err != nil {
			log.Printf("[Checkpoint] cleanup: failed to delete %s/%s: %v", sessionID, cp.CheckpointID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) readPath(path string) (*model.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decodeRaw(data)
	if err != nil {
		return nil, err
	}
	record, err := upgrade(raw)
	if err != nil {
		return nil, err
	}
	// Filename is the source of truth for identity, per the original
	// implementation's list_checkpoints.
	sid, cid, ok := parseFilename(filepath.Base(path))
	if ok {
		record.SessionID, record.CheckpointID = sid, cid
	}
	return record, nil
}

func (s *Store) path(sessionID, checkpointID string) string {
	return filepath.Join(s.dir, sessionID+"_"+checkpointID+fileExt)
}

func parseFilename(name string) (sessionID, checkpointID string, ok bool) {
	name = strings.TrimSuffix(name, fileExt)
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}
