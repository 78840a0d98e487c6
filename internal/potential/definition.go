package potential

import (
	"github.com/danielpatrickdp/potential/internal/params"
)

// RawRegion is one entry of the regions section: its declaration index and
// its "domain|function" spec.
type RawRegion struct {
	Index int    `json:"index" yaml:"index"`
	Spec  string `json:"spec" yaml:"spec"`
}

// Definition is the format-independent source of a potential. Strength is
// optional and defaults to 1.
type Definition struct {
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Parameters []params.Pair `json:"parameters" yaml:"parameters"`
	Regions    []RawRegion   `json:"regions" yaml:"regions"`
	Strength   *float64      `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// Specs wraps region specs with their positions as declaration indices.
func Specs(specs ...string) []RawRegion {
	out := make([]RawRegion, len(specs))
	for i, s := range specs {
		out[i] = RawRegion{Index: i, Spec: s}
	}
	return out
}
