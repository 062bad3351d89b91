package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/vision-service/internal/config"
)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, ttl)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestArtifactStores(t *testing.T) {
	stores := []struct {
		name  string
		build func(t *testing.T) ArtifactStore
	}{
		{
			name: "memory",
			build: func(t *testing.T) ArtifactStore {
				return NewMemoryStore(16, time.Hour)
			},
		},
		{
			name: "redis",
			build: func(t *testing.T) ArtifactStore {
				store, _ := newMiniredisStore(t, time.Hour)
				return store
			},
		},
		{
			name: "disk",
			build: func(t *testing.T) ArtifactStore {
				store, err := NewDiskStore(t.TempDir(), time.Hour)
				if err != nil {
					t.Fatalf("NewDiskStore failed: %v", err)
				}
				return store
			},
		},
	}

	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := tc.build(t)

			firstID, err := store.Put(ctx, "req-1", KindEnhanced, []byte("first"), "image/jpeg")
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			secondID, err := store.Put(ctx, "req-2", KindEnhanced, []byte("second"), "image/jpeg")
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if firstID == secondID {
				t.Fatal("expected distinct handles")
			}

			// Each handle keeps its own request's artifact
			first, err := store.Get(ctx, firstID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(first.Data, []byte("first")) {
				t.Errorf("expected first data, got %q", first.Data)
			}
			if first.RequestID != "req-1" || first.Kind != KindEnhanced || first.ContentType != "image/jpeg" {
				t.Errorf("unexpected metadata: %+v", first)
			}

			latest, err := store.Latest(ctx, KindEnhanced)
			if err != nil {
				t.Fatalf("Latest failed: %v", err)
			}
			if latest.ID != secondID {
				t.Errorf("expected latest %s, got %s", secondID, latest.ID)
			}

			if _, err := store.Latest(ctx, KindMatched); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for empty kind, got %v", err)
			}
			if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown id, got %v", err)
			}

			if _, err := store.Put(ctx, "req-3", Kind("thumbnail"), []byte("x"), "image/jpeg"); err == nil {
				t.Error("expected error for unknown kind")
			}
			if _, err := store.Put(ctx, "req-3", KindPlate, nil, "image/jpeg"); err == nil {
				t.Error("expected error for empty data")
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(4, 10*time.Millisecond)
	ctx := context.Background()

	id, err := store.Put(ctx, "req", KindPlate, []byte("crop"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired artifact, got %v", err)
	}
	if _, err := store.Latest(ctx, KindPlate); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired latest, got %v", err)
	}
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()

	oldest, _ := store.Put(ctx, "a", KindInput, []byte("a"), "image/jpeg")
	store.Put(ctx, "b", KindInput, []byte("b"), "image/jpeg")
	store.Put(ctx, "c", KindInput, []byte("c"), "image/jpeg")

	if store.Len() != 2 {
		t.Errorf("expected 2 live artifacts, got %d", store.Len())
	}
	if _, err := store.Get(ctx, oldest); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected oldest artifact evicted, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Minute)
	ctx := context.Background()

	id, err := store.Put(ctx, "req", KindMatched, []byte("annotated"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ttl := mr.TTL(artifactKey(id)); ttl != time.Minute {
		t.Errorf("expected ttl of 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired artifact, got %v", err)
	}
	if _, err := store.Latest(ctx, KindMatched); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired latest pointer, got %v", err)
	}
}

func TestDiskStoreRejectsNonUUIDHandles(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	if _, err := store.Get(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDiskStoreSweep(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, time.Millisecond)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ctx := context.Background()

	id, err := store.Put(ctx, "req", KindInput, []byte("upload"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired artifact, got %v", err)
	}

	store.Sweep(time.Now())
	if _, err := os.Stat(filepath.Join(dir, id+".bin")); !os.IsNotExist(err) {
		t.Errorf("expected data file removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, id+".json")); !os.IsNotExist(err) {
		t.Errorf("expected metadata file removed, stat err = %v", err)
	}
}

func TestNewArtifactStore(t *testing.T) {
	cfg := &config.Config{
		ArtifactBackend:    config.ArtifactBackendDisk,
		ArtifactTTLSeconds: 60,
		OutputDir:          t.TempDir(),
	}
	store, err := NewArtifactStore(cfg)
	if err != nil {
		t.Fatalf("NewArtifactStore failed: %v", err)
	}
	if _, ok := store.(*DiskStore); !ok {
		t.Errorf("expected *DiskStore, got %T", store)
	}

	cfg.ArtifactBackend = "s3"
	if _, err := NewArtifactStore(cfg); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestRedisStorePing(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Minute)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail after the server stops")
	}
}
