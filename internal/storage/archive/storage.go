// Package archive stores exported backtest artifacts on the local filesystem
// or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/boxsim/internal/core"
)

// Storage is a flat key/value store addressed by slash-separated paths.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend types accepted by New.
const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

// New builds the backend named by cfg.Type. An empty type means localfs.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocalFS, "":
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("localfs path required"))
		}
		return NewLocalFS(cfg.Path)
	case TypeS3:
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required"))
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}

// cleanKey normalizes p to a relative slash path and rejects keys that would
// leave the storage root.
func cleanKey(p string) (string, error) {
	slashed := strings.ReplaceAll(p, "\\", "/")
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", fmt.Errorf("storage path %q escapes root", p)
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if key == "" {
		return "", fmt.Errorf("empty storage path %q", p)
	}
	return key, nil
}

// contentType guesses a MIME type for exported artifacts.
func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".txt", ".prom":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
