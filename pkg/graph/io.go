package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EncodeSnapshot marshals a snapshot as indented JSON.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot unmarshals a snapshot. A snapshot without nodes decodes
// with an empty, non-nil node map.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	if snap.Nodes == nil {
		snap.Nodes = map[string]*Node{}
	}
	return &snap, nil
}

// IsSnapshot reports whether data is a JSON object carrying the id, entry
// and nodes fields of a snapshot.
func IsSnapshot(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var probe struct {
		ID    *string         `json:"id"`
		Entry *string         `json:"entry"`
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.ID != nil && probe.Entry != nil && len(probe.Nodes) > 0
}

// EncodeDelta marshals a delta as indented JSON.
func EncodeDelta(delta *Delta) ([]byte, error) {
	data, err := json.MarshalIndent(delta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling delta: %w", err)
	}
	return data, nil
}

// DecodeDelta unmarshals a delta.
func DecodeDelta(data []byte) (*Delta, error) {
	var delta Delta
	if err := json.Unmarshal(data, &delta); err != nil {
		return nil, fmt.Errorf("unmarshaling delta: %w", err)
	}
	return &delta, nil
}

func writeFile(path, what string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", what, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", what, err)
	}
	return nil
}

// SaveSnapshot writes a snapshot to disk as JSON.
func SaveSnapshot(path string, snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return writeFile(path, "snapshot", data)
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// SaveDelta writes a delta to disk as JSON.
func SaveDelta(path string, delta *Delta) error {
	data, err := EncodeDelta(delta)
	if err != nil {
		return err
	}
	return writeFile(path, "delta", data)
}

// LoadDelta reads a delta from disk.
func LoadDelta(path string) (*Delta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading delta: %w", err)
	}
	return DecodeDelta(data)
}
