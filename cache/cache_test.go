package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](4)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get returned true for missing key")
	}

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a) = (%v, %v); want (1, true)", v, ok)
	}

	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) after update = %v; want 2", v)
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh a
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("Least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Recently used entry was evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("never-there")

	if _, ok := c.Get("a"); ok {
		t.Error("Deleted key still present")
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d; want 0", c.Len())
	}
}

func TestCache_GetOrFetch(t *testing.T) {
	c := New[string, int](4)

	calls := 0
	fetch := func() (int, error) {
		calls++
		return 7, nil
	}

	v, err := c.GetOrFetch("k", fetch)
	if err != nil || v != 7 {
		t.Fatalf("GetOrFetch = (%v, %v); want (7, nil)", v, err)
	}

	v, err = c.GetOrFetch("k", fetch)
	if err != nil || v != 7 {
		t.Fatalf("Second GetOrFetch = (%v, %v); want (7, nil)", v, err)
	}
	if calls != 1 {
		t.Errorf("Fetch called %d times; want 1", calls)
	}
}

func TestCache_GetOrFetchError(t *testing.T) {
	c := New[string, int](4)
	wantErr := errors.New("fetch failed")

	_, err := c.GetOrFetch("k", func() (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v; want %v", err, wantErr)
	}

	// Errors must not be cached.
	v, err := c.GetOrFetch("k", func() (int, error) {
		return 9, nil
	})
	if err != nil || v != 9 {
		t.Errorf("GetOrFetch after error = (%v, %v); want (9, nil)", v, err)
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = %+v; want 1 hit, 1 miss", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v; want 0.5", stats.HitRate)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](32)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(j%40, n)
				c.Get(j % 40)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 32 {
		t.Errorf("Len() = %d; capacity 32 exceeded", c.Len())
	}
}

func TestCache_ConcurrentSameKey(t *testing.T) {
	// Readers must never observe a half-written value while a writer
	// replaces the entry for the same key.
	c := New[string, string](4)
	c.Set("spec", "v0")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.Set("spec", "v1")
			c.Set("spec", "v0")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			v, ok := c.Get("spec")
			if !ok {
				t.Error("Get returned a miss for a present key")
				return
			}
			if v != "v0" && v != "v1" {
				t.Errorf("Get returned %q; want v0 or v1", v)
				return
			}
		}
	}()
	wg.Wait()
}
