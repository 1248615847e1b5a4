package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cortexai/opsagent/internal/service"
)

func TestTTLCache_SharesConcurrentFetches(t *testing.T) {
	c := service.NewTTLCache("test", time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			if err != nil {
				t.Errorf("GetOrFetch: %v", err)
			}
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
	for i, v := range results {
		if v != "value" {
			t.Errorf("result %d = %q", i, v)
		}
	}

	// Served from cache now.
	if _, err := c.GetOrFetch(context.Background(), "k", fetch); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected cache hit, fetch called %d times", n)
	}
}

func TestTTLCache_ErrorsAreNotCached(t *testing.T) {
	c := service.NewTTLCache("test", time.Minute)
	boom := errors.New("boom")

	if _, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed fetch must not be stored")
	}

	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c := service.NewTTLCache("test", 10*time.Millisecond)
	n := 0
	fetch := func(context.Context) (string, error) {
		n++
		return "v", nil
	}
	c.GetOrFetch(context.Background(), "k", fetch)
	time.Sleep(20 * time.Millisecond)
	c.GetOrFetch(context.Background(), "k", fetch)
	if n != 2 {
		t.Errorf("expected refetch after expiry, fetch called %d times", n)
	}

	c.Invalidate("k")
	c.GetOrFetch(context.Background(), "k", fetch)
	if n != 3 {
		t.Errorf("expected refetch after Invalidate, fetch called %d times", n)
	}
}
