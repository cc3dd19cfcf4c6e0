package authz

import (
	"errors"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
)

// Owned is a record with a single owning subject.
type Owned interface {
	OwnerID() string
}

// RequireOwner checks that subjectID owns rec. lookupErr is the error from
// loading rec; a missing record is reported before any ownership decision.
func RequireOwner(subjectID string, rec Owned, lookupErr error) error {
	if lookupErr != nil {
		if errors.Is(lookupErr, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return lookupErr
	}
	if rec == nil || rec.OwnerID() == "" {
		return common.ErrorNotFound
	}
	if subjectID == "" {
		return common.ErrorUnauthorized
	}
	if rec.OwnerID() != subjectID {
		return common.ErrForbidden
	}
	return nil
}
