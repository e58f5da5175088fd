package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/infra/cache"
)

func TestCache_RoundTrip(t *testing.T) {
	c := cache.New[string](time.Minute)
	defer c.Close()

	c.Set("inv-1", "performance view")
	got, ok := c.Get("inv-1")
	if !ok || got != "performance view" {
		t.Fatalf("expected cached value back, got %q (found=%v)", got, ok)
	}

	if _, ok := c.Get("inv-2"); ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestCache_ExpiredRecordIsAMiss(t *testing.T) {
	c := cache.New[int](10 * time.Millisecond)
	defer c.Close()

	c.Set("inv-1", 42)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("inv-1"); ok {
		t.Error("expected the record to expire")
	}
}

func TestCache_DeleteInvalidatesImmediately(t *testing.T) {
	c := cache.New[string](time.Minute)
	defer c.Close()

	c.Set("inv-1", "stale view")
	c.Delete("inv-1")

	if _, ok := c.Get("inv-1"); ok {
		t.Error("expected a miss after delete")
	}
}

func TestCache_JanitorSweepsExpired(t *testing.T) {
	c := cache.New[int](10 * time.Millisecond)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("inv-%d", i), i)
	}

	deadline := time.Now().Add(time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expected the janitor to sweep all records, %d left", n)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := cache.New[int](time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("inv-%d", i%4)
			c.Set(key, i)
			c.Get(key)
			c.Delete(key)
		}()
	}
	wg.Wait()
}
