package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sweepInterval = time.Minute

// DiskStore writes each artifact to <dir>/<id>.bin with a <id>.json sidecar.
// Latest pointers live in <dir>/latest_<kind>.
type DiskStore struct {
	dir string
	ttl time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

// NewDiskStore creates dir if needed
func NewDiskStore(dir string, ttl time.Duration) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, ttl: ttl, lastSweep: time.Now()}, nil
}

func (s *DiskStore) dataPath(id string) string {
	return filepath.Join(s.dir, id+".bin")
}

func (s *DiskStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *DiskStore) latestPath(kind Kind) string {
	return filepath.Join(s.dir, "latest_"+string(kind))
}

func (s *DiskStore) Put(ctx context.Context, requestID string, kind Kind, data []byte, contentType string) (string, error) {
	a, err := newArtifact(requestID, kind, data, contentType)
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.dataPath(a.ID), a.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.WriteFile(s.metaPath(a.ID), meta, 0o644); err != nil {
		os.Remove(s.dataPath(a.ID))
		return "", fmt.Errorf("failed to write artifact metadata: %w", err)
	}
	if err := os.WriteFile(s.latestPath(kind), []byte(a.ID), 0o644); err != nil {
		return "", fmt.Errorf("failed to update latest %s pointer: %w", kind, err)
	}

	if time.Since(s.lastSweep) >= sweepInterval {
		s.lastSweep = time.Now()
		s.sweepLocked(time.Now())
	}

	return a.ID, nil
}

func (s *DiskStore) Get(ctx context.Context, id string) (*Artifact, error) {
	// Handles double as file names; anything that is not a UUID cannot name a stored artifact.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	meta, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(meta, &a); err != nil {
		return nil, fmt.Errorf("invalid metadata for artifact %s: %w", id, err)
	}
	if s.expired(a.CreatedAt, time.Now()) {
		return nil, ErrNotFound
	}

	a.Data, err = os.ReadFile(s.dataPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return &a, nil
}

func (s *DiskStore) Latest(ctx context.Context, kind Kind) (*Artifact, error) {
	if !kind.Valid() {
		return nil, ErrNotFound
	}

	id, err := os.ReadFile(s.latestPath(kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read latest %s pointer: %w", kind, err)
	}
	return s.Get(ctx, strings.TrimSpace(string(id)))
}

func (s *DiskStore) expired(createdAt, now time.Time) bool {
	return s.ttl > 0 && now.Sub(createdAt) > s.ttl
}

// Sweep removes expired artifacts
func (s *DiskStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

func (s *DiskStore) sweepLocked(now time.Time) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")

		meta, err := os.ReadFile(s.metaPath(id))
		if err != nil {
			continue
		}
		var a Artifact
		if err := json.Unmarshal(meta, &a); err != nil {
			continue
		}
		if s.expired(a.CreatedAt, now) {
			os.Remove(s.dataPath(id))
			os.Remove(s.metaPath(id))
		}
	}
}

func (s *DiskStore) Close() error {
	return nil
}
