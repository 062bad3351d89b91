package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps artifacts in a size-bounded LRU with per-entry expiry
type MemoryStore struct {
	cache *expirable.LRU[string, *Artifact]

	mu     sync.RWMutex
	latest map[Kind]string
}

// NewMemoryStore creates an in-process store holding at most size artifacts for ttl
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache:  expirable.NewLRU[string, *Artifact](size, nil, ttl),
		latest: make(map[Kind]string),
	}
}

func (s *MemoryStore) Put(ctx context.Context, requestID string, kind Kind, data []byte, contentType string) (string, error) {
	a, err := newArtifact(requestID, kind, data, contentType)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cache.Add(a.ID, a)
	s.latest[kind] = a.ID
	s.mu.Unlock()

	return a.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Artifact, error) {
	a, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) Latest(ctx context.Context, kind Kind) (*Artifact, error) {
	s.mu.RLock()
	id, ok := s.latest[kind]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Len returns the number of live artifacts
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
