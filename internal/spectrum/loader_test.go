package spectrum

import (
	"errors"
	"testing"
	"time"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/cache"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

func TestLoader_CachesParsedSpectrum(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bg.Spe", sampleSpe)
	c := cache.NewMemoryCache[*model.Spectrum](time.Minute, time.Minute)
	loader := NewLoader(c)

	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if first != second {
		t.Error("expected second load to return the cached spectrum")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached spectrum, got %d", c.Len())
	}
}

func TestLoader_NoCache(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bg.Spe", sampleSpe)
	loader := NewLoader(nil)

	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, _ := loader.Load(path)
	if first == second {
		t.Error("expected a fresh parse without a cache")
	}
}

func TestLoader_FormatErrorNotCached(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.Spe", "$SPEC_ID:\nnothing\n")
	c := cache.NewMemoryCache[*model.Spectrum](time.Minute, time.Minute)

	_, err := NewLoader(c).Load(path)
	if !errors.Is(err, model.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected nothing cached, got %d entries", c.Len())
	}
}
