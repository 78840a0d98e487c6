// Package fixture runs JSON regression fixtures against the potential
// engine. A fixture names a definition, optional per-run adjustments and
// the values expected at sample points.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/danielpatrickdp/potential/internal/potential"
)

// #region fixture-types
// Fixture is the top-level JSON structure of a regression fixture.
type Fixture struct {
	Description string               `json:"description"`
	Definition  potential.Definition `json:"definition"`
	Adjust      map[string]float64   `json:"adjust,omitempty"`
	Scale       *float64             `json:"scale,omitempty"`
	// BuildError is the fault kind the definition is expected to fail with.
	BuildError string `json:"build_error,omitempty"`
	Cases      []Case `json:"cases"`

	path string
}

// Case is one batch of sample points. Either Want or Error is checked.
type Case struct {
	ID    string    `json:"id"`
	X     []float64 `json:"x"`
	Want  []float64 `json:"want,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Path is the file the fixture was loaded from.
func (f *Fixture) Path() string { return f.path }

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.BuildError == "" && len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s has no cases", path)
	}
	f.path = path
	return &f, nil
}

// LoadDir loads every *.json fixture in dir, sorted by file name.
func LoadDir(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}
	sort.Strings(paths)
	fixtures := make([]*Fixture, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

// #endregion fixture-loader
