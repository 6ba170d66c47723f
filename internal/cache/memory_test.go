package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache[[]float64](time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("a", []float64{1, 2, 3}, 0)
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("unexpected value %v", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestMemoryCache_DeleteClear(t *testing.T) {
	c := NewMemoryCache[int](time.Minute, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Delete")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache[string](time.Minute, time.Minute)
	c.Set("short", "v", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected entry to expire")
	}
}

func TestFileKey(t *testing.T) {
	now := time.Unix(1700000000, 0)

	k1 := FileKey("/data/Cs.Spe", 100, now)
	k2 := FileKey("/data/Cs.Spe", 100, now)
	if k1 != k2 {
		t.Error("expected identical keys for identical file versions")
	}

	if FileKey("/data/Cs.Spe", 101, now) == k1 {
		t.Error("expected size change to change the key")
	}
	if FileKey("/data/Cs.Spe", 100, now.Add(time.Second)) == k1 {
		t.Error("expected mtime change to change the key")
	}
	if FileKey("/data/Ba.Spe", 100, now) == k1 {
		t.Error("expected path change to change the key")
	}
}
