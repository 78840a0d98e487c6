package store

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/potential/internal/potential"
)

// ErrNotFound is returned when a version or active pointer does not exist.
var ErrNotFound = errors.New("not found")

// #region record
// Record is one saved version of a named potential definition.
type Record struct {
	VersionID  string
	ParentID   string
	Name       string
	Definition potential.Definition
	Note       string
	CreatedAt  time.Time
}

// Build constructs the potential the record describes.
func (r Record) Build() (*potential.Potential, error) {
	return potential.BuildDefinition(r.Definition)
}

// #endregion record

// #region active-entry
// ActiveEntry pairs a potential name with its active version.
type ActiveEntry struct {
	Name      string
	VersionID string
}

// #endregion active-entry
