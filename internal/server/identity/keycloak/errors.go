package keycloak

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
)

// UpstreamError describes a failed call to Keycloak. Kind is either
// common.ErrUpstreamUnavailable or common.ErrUpstreamRejected.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
	Kind   error
	Cause  error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("keycloak %s: status %d: %s", e.Op, e.Status, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("keycloak %s: %v", e.Op, e.Cause)
	default:
		return fmt.Sprintf("keycloak %s: %v", e.Op, e.Kind)
	}
}

func (e *UpstreamError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func unavailable(op string, cause error) error {
	return &UpstreamError{Op: op, Kind: common.ErrUpstreamUnavailable, Cause: cause}
}

func rejected(op string, status int, body []byte) error {
	return &UpstreamError{Op: op, Status: status, Body: string(body), Kind: common.ErrUpstreamRejected}
}

var errUnknownUserID = errors.New("created user id unknown, not deleted")

// PartialRegistrationError reports an account that was created in Keycloak
// but whose password could not be set. RollbackErr is nil when the account
// was deleted again.
type PartialRegistrationError struct {
	UserID      string
	Cause       error
	RollbackErr error
}

func (e *PartialRegistrationError) Error() string {
	outcome := "rolled back"
	if e.RollbackErr != nil {
		outcome = fmt.Sprintf("rollback failed: %v", e.RollbackErr)
	}
	user := e.UserID
	if user == "" {
		user = "<unknown>"
	}
	return fmt.Sprintf("%v: user %s: %v (%s)", common.ErrPartialRegistration, user, e.Cause, outcome)
}

func (e *PartialRegistrationError) Unwrap() []error {
	return []error{common.ErrPartialRegistration, e.Cause}
}
