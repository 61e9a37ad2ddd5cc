// Package artifact persists finished STL files beyond the request that
// produced them. The cache serves repeats fast; the store is for keeping
// artifacts around, locally or in S3.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/observability"
)

// ErrNotFound means no artifact is stored under the given name.
var ErrNotFound = errors.New("artifact not found")

// Store persists conversion artifacts under caller-chosen names.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}

// New builds the configured store. Backend none returns nil: persistence
// off entirely.
func New(cfg config.ArtifactConfig, logger *observability.Logger) (Store, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "local":
		return NewLocalStore(cfg.Dir, logger)
	case "s3":
		return NewS3Store(cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
