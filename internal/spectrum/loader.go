package spectrum

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/cache"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Loader parses spectrum files through a cache. The same background file is
// read once per run no matter how many measurements reference it.
type Loader struct {
	cache cache.Cache[*model.Spectrum]
}

// NewLoader creates a loader backed by c. A nil cache disables caching.
func NewLoader(c cache.Cache[*model.Spectrum]) *Loader {
	return &Loader{cache: c}
}

// Load returns the parsed spectrum at path. Cached spectra are shared and
// must not be modified by the caller.
func (l *Loader) Load(path string) (*model.Spectrum, error) {
	if l.cache == nil {
		return Parse(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to stat spectrum %s", path)
	}
	key := cache.FileKey(path, info.Size(), info.ModTime())

	if s, ok := l.cache.Get(key); ok {
		logrus.WithField("file", path).Debug("spectrum cache hit")
		return s, nil
	}

	s, err := Parse(path)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, s, 0)
	return s, nil
}
