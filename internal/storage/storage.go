// Package storage keeps snapshot and delta blobs in a local directory, S3
// or GCS, namespaced per project.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deptree/deptree/pkg/graph"
)

// StorageClient abstracts blob storage for snapshots and deltas.
type StorageClient interface {
	PutSnapshot(ctx context.Context, project, snapshotID string, data []byte) error
	GetSnapshot(ctx context.Context, project, snapshotID string) ([]byte, error)
	PutDelta(ctx context.Context, project, deltaID string, data []byte) error
	GetDelta(ctx context.Context, project, deltaID string) ([]byte, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // local (default), s3, gcs
	LocalDir  string
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// New returns the StorageClient for cfg.Backend.
func New(ctx context.Context, cfg Config) (StorageClient, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local storage requires a directory")
		}
		return NewLocalStorage(cfg.LocalDir), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			Prefix:    cfg.Prefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// objectKey builds "<prefix>/<project>/<kind>/<id>.json".
func objectKey(prefix, project, kind, id string) string {
	key := project + "/" + kind + "/" + id + ".json"
	if p := strings.Trim(prefix, "/"); p != "" {
		key = p + "/" + key
	}
	return key
}

// SaveSnapshot encodes and stores snap under its ID.
func SaveSnapshot(ctx context.Context, c StorageClient, project string, snap *graph.Snapshot) error {
	data, err := graph.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return c.PutSnapshot(ctx, project, snap.ID, data)
}

// LoadSnapshot fetches and decodes a snapshot.
func LoadSnapshot(ctx context.Context, c StorageClient, project, snapshotID string) (*graph.Snapshot, error) {
	data, err := c.GetSnapshot(ctx, project, snapshotID)
	if err != nil {
		return nil, err
	}
	return graph.DecodeSnapshot(data)
}

// SaveDelta encodes and stores delta under its ID.
func SaveDelta(ctx context.Context, c StorageClient, project string, delta *graph.Delta) error {
	data, err := graph.EncodeDelta(delta)
	if err != nil {
		return err
	}
	return c.PutDelta(ctx, project, delta.ID, data)
}

// LoadDelta fetches and decodes a delta.
func LoadDelta(ctx context.Context, c StorageClient, project, deltaID string) (*graph.Delta, error) {
	data, err := c.GetDelta(ctx, project, deltaID)
	if err != nil {
		return nil, err
	}
	return graph.DecodeDelta(data)
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(project, kind, id string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(objectKey("", project, kind, id)))
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// PutSnapshot stores a snapshot blob.
func (s *LocalStorage) PutSnapshot(ctx context.Context, project, snapshotID string, data []byte) error {
	return s.put(s.path(project, "snapshots", snapshotID), data)
}

// GetSnapshot retrieves a snapshot blob.
func (s *LocalStorage) GetSnapshot(ctx context.Context, project, snapshotID string) ([]byte, error) {
	return os.ReadFile(s.path(project, "snapshots", snapshotID))
}

// PutDelta stores a delta blob.
func (s *LocalStorage) PutDelta(ctx context.Context, project, deltaID string, data []byte) error {
	return s.put(s.path(project, "deltas", deltaID), data)
}

// GetDelta retrieves a delta blob.
func (s *LocalStorage) GetDelta(ctx context.Context, project, deltaID string) ([]byte, error) {
	return os.ReadFile(s.path(project, "deltas", deltaID))
}
