package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gravix/internal/storage/durability"
)

// checkpointFile is the small on-disk record linking keyspace snapshots to
// a sequence number. JSON is used here, not
// msgpack, because this file is meant to be human-inspectable ops
// metadata, not a hot-path record in the durability log.
const checkpointFileName = "checkpoint.json"

func loadCheckpoint(baseDir string) (durability.Checkpoint, error) {
	path := filepath.Join(baseDir, "checkpoints", checkpointFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return durability.Checkpoint{Seq: 0}, nil
	}
	if err != nil {
		return durability.Checkpoint{}, err
	}
	var cp durability.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return durability.Checkpoint{}, err
	}
	return cp, nil
}

// WriteCheckpoint persists a checkpoint for seq, so a future Recover can
// skip replaying everything before it. Per-keyspace flushed state is
// implicit: badger keyspaces are durable as of any commit they've applied,
// so the checkpoint only needs to record the sequence watermark itself.
func WriteCheckpoint(baseDir string, seq uint64) error {
	dir := filepath.Join(baseDir, "checkpoints")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(durability.Checkpoint{Seq: seq})
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, checkpointFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, checkpointFileName))
}
