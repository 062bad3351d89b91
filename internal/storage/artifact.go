/**
 * Artifact storage for request outputs
 *
 * Every image a request produces (the upload, the plate crop, the enhanced
 * plate, the annotated crowd) is stored under its own UUID handle. Each store
 * also keeps a "latest" pointer per kind for the handle-less GET endpoints.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/vision-service/internal/config"
)

// Kind names what an artifact is
type Kind string

const (
	KindInput    Kind = "input"
	KindPlate    Kind = "plate"
	KindEnhanced Kind = "enhanced"
	KindMatched  Kind = "matched"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindInput, KindPlate, KindEnhanced, KindMatched:
		return true
	}
	return false
}

// ErrNotFound is returned when no artifact exists for an id or kind
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored request output
type Artifact struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	Kind        Kind      `json:"kind"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactStore persists request artifacts for a bounded time
type ArtifactStore interface {
	// Put stores data and returns the new artifact's handle
	Put(ctx context.Context, requestID string, kind Kind, data []byte, contentType string) (string, error)
	Get(ctx context.Context, id string) (*Artifact, error)
	// Latest returns the most recently stored artifact of kind
	Latest(ctx context.Context, kind Kind) (*Artifact, error)
	Close() error
}

func newArtifact(requestID string, kind Kind, data []byte, contentType string) (*Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("artifact data is empty")
	}

	return &Artifact{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		Kind:        kind,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewArtifactStore builds the store selected by ARTIFACT_BACKEND
func NewArtifactStore(cfg *config.Config) (ArtifactStore, error) {
	ttl := time.Duration(cfg.ArtifactTTLSeconds) * time.Second

	switch cfg.ArtifactBackend {
	case config.ArtifactBackendMemory:
		return NewMemoryStore(cfg.ArtifactCacheSize, ttl), nil
	case config.ArtifactBackendRedis:
		return NewRedisStore(cfg.RedisURL, ttl)
	case config.ArtifactBackendDisk:
		return NewDiskStore(cfg.OutputDir, ttl)
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", cfg.ArtifactBackend)
	}
}
