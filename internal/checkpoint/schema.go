package checkpoint

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rawblock/linkfinder/internal/model"
)

// decodeRaw decodes a checkpoint as written, before any upgrader runs. Per
// spec.md §9, a mismatched field shape (e.g. set vs list) is never silently
// reinterpreted without a version bump: each upgrader is an explicit,
// named transformation applied only after schema_version is known.
func decodeRaw(data []byte) (*model.Checkpoint, error) {
	var record model.Checkpoint
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// upgrader transforms a checkpoint one schema version forward.
type upgrader func(*model.Checkpoint) error

// upgraders is keyed by the version it upgrades FROM. There are none yet
// because CurrentSchemaVersion is the only version ever written; the chain
// exists so a future bump has a documented home rather than an ad hoc
// migration bolted onto Read.
var upgraders = map[int]upgrader{}

// upgrade walks record.SchemaVersion forward to model.CurrentSchemaVersion,
// applying one upgrader per step.
func upgrade(record *model.Checkpoint) (*model.Checkpoint, error) {
	for record.SchemaVersion < model.CurrentSchemaVersion {
		up, ok := upgraders[record.SchemaVersion]
		if !ok {
			return nil, fmt.Errorf("no upgrader registered from schema version %d", record.SchemaVersion)
		}
		if err := up(record); err != nil {
			return nil, fmt.Errorf("upgrade from schema version %d: %w", record.SchemaVersion, err)
		}
	}
	if record.SchemaVersion > model.CurrentSchemaVersion {
		return nil, fmt.Errorf("checkpoint schema version %d is newer than this build supports (%d)",
			record.SchemaVersion, model.CurrentSchemaVersion)
	}
	return record, nil
}
