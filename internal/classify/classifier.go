// Package classify decides which calibration isotope a spectrum file holds
package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Source records how a file was classified
type Source string

const (
	SourceManifest Source = "manifest"
	SourceFilename Source = "filename"
)

// Match is a successful classification
type Match struct {
	Label  string
	Source Source
}

// Manifest maps base file names to isotope labels. It takes precedence over
// file name matching.
//
//	files:
//	  run_0412.Spe: Cs
//	  run_0413.Spe: Ba
type Manifest struct {
	Files map[string]string `yaml:"files"`
}

// LoadManifest reads a YAML manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &model.ConfigError{Field: "manifest", Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return &m, nil
}

// Classifier assigns isotope labels to files of one detector
type Classifier struct {
	labels   []string // match order
	manifest map[string]string
}

// NewClassifier creates a classifier for the detector's isotopes. Every
// manifest label must name one of them.
func NewClassifier(detector model.DetectorConfig, manifest *Manifest) (*Classifier, error) {
	c := &Classifier{
		labels:   detector.Labels(),
		manifest: make(map[string]string),
	}
	if manifest == nil {
		return c, nil
	}

	for name, label := range manifest.Files {
		if _, ok := detector.Isotope(label); !ok {
			return nil, &model.ConfigError{
				Field:   "manifest",
				Message: fmt.Sprintf("%s: unknown isotope %q (want one of %s)", name, label, strings.Join(c.labels, ", ")),
			}
		}
		c.manifest[filepath.Base(name)] = label
	}
	return c, nil
}

// Classify returns the isotope for the file at path. The manifest wins;
// otherwise the first label, in detector order, that appears in the base
// file name is used. Matching is case-sensitive.
func (c *Classifier) Classify(path string) (Match, bool) {
	base := filepath.Base(path)

	if label, ok := c.manifest[base]; ok {
		return Match{Label: label, Source: SourceManifest}, true
	}

	for _, label := range c.labels {
		if strings.Contains(base, label) {
			return Match{Label: label, Source: SourceFilename}, true
		}
	}
	return Match{}, false
}
