package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestCache_Basic(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}
	if _, ok := c.Get("d"); ok {
		t.Error("Get(d) should return false for missing key")
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)

	// Access 'a' to make it recently used
	c.Get("a")

	// Add 'c', should evict 'b' (least recently used)
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("'b' should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if s := c.Stats(); s.Evicts != 1 {
		t.Errorf("Evicts = %d; want 1", s.Evicts)
	}
}

func TestCache_Update(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("a", 10)

	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d; want 10", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d; want 1", c.Len())
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int](10)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("answer", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v; want 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times; want 1", calls)
	}
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	c := New[string, int](10)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d; failed loads must not be cached", c.Len())
	}

	v, err := c.GetOrLoad("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrLoad = %d, %v; want 7, nil", v, err)
	}
}

func TestCache_ClearAndStats(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Size != 1 || s.Capacity != 4 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats = %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Errorf("HitRate = %v; want 0.5", s.HitRate)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestCache_ZeroCapacity(t *testing.T) {
	c := New[string, int](0)

	// Should default to 100
	for i := 0; i < 50; i++ {
		c.Set(string(rune('a'+i)), i)
	}

	if c.Len() != 50 {
		t.Errorf("Len() = %d; want 50", c.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](100)

	var wg sync.WaitGroup
	n := 100

	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(i, i*10)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = c.GetOrLoad(i, func() (int, error) { return i * 10, nil })
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		if v, ok := c.Get(i); ok && v != i*10 {
			t.Errorf("Get(%d) = %d; want %d", i, v, i*10)
		}
	}
}

func BenchmarkCache_GetOrLoad(b *testing.B) {
	c := New[int, int](1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrLoad(i%1000, func() (int, error) { return i, nil })
	}
}
