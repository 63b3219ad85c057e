package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/devteam/internal/port/cache"
)

// RunComplianceTests runs the standard compliance test suite against any Cache implementation.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "compliance-key", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "compliance-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "nonexistent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})
}

// mapCache is a trivial in-memory Cache used to exercise the JSON helpers.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func TestMapCacheCompliance(t *testing.T) {
	RunComplianceTests(t, &mapCache{m: make(map[string][]byte)})
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := &mapCache{m: make(map[string][]byte)}

	type models struct {
		IDs []string `json:"ids"`
	}

	if err := cache.SetJSON(ctx, c, "models", models{IDs: []string{"gpt-4o", "claude-3-opus"}}, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, ok, err := cache.GetJSON[models](ctx, c, "models")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || len(got.IDs) != 2 || got.IDs[1] != "claude-3-opus" {
		t.Fatalf("unexpected value %+v (ok=%v)", got, ok)
	}

	_, ok, err = cache.GetJSON[models](ctx, c, "missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestGetJSONCorrupt(t *testing.T) {
	ctx := context.Background()
	c := &mapCache{m: map[string][]byte{"bad": []byte("{not json")}}

	if _, _, err := cache.GetJSON[map[string]any](ctx, c, "bad"); err == nil {
		t.Fatal("expected decode error")
	}
}
