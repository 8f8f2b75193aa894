// Package access decides what a caller may do with a file.
package access

import (
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

// Resolve returns the level identity holds on f. Rules apply in order:
// owner gets write, a public file gives read to anyone (anonymous callers
// included), otherwise the best matching access-list entry wins. No match
// returns common.ErrorForbidden.
func Resolve(identity models.Identity, f *models.File) (models.AccessLevel, error) {
	if f == nil {
		return models.AccessNone, common.ErrorNotFound
	}

	if identity.UserID != "" && identity.UserID == f.OwnerID {
		return models.AccessWrite, nil
	}

	level := models.AccessNone
	if f.IsPublic {
		level = models.AccessRead
	}

	if !identity.Anonymous() {
		for _, e := range f.AccessList {
			if identity.Matches(e) && e.Level == models.AccessWrite {
				return models.AccessWrite, nil
			}
			if identity.Matches(e) && e.Level == models.AccessRead {
				level = models.AccessRead
			}
		}
	}

	if level == models.AccessNone {
		return models.AccessNone, common.ErrorForbidden
	}
	return level, nil
}

// Require fails with common.ErrorForbidden unless identity holds needed on f.
func Require(identity models.Identity, f *models.File, needed models.AccessLevel) error {
	level, err := Resolve(identity, f)
	if err != nil {
		return err
	}
	if !level.Allows(needed) {
		return common.ErrorForbidden
	}
	return nil
}

// IsOwner reports whether identity owns f.
func IsOwner(identity models.Identity, f *models.File) bool {
	return f != nil && identity.UserID != "" && identity.UserID == f.OwnerID
}
