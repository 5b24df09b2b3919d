package policy

import (
	"errors"
	"fmt"

	"github.com/ppiankov/rangerwatch/internal/store"
)

var (
	// ErrMalformedShape means the payload does not have the shape of a
	// policy or a policy list. It is a data-contract violation by the service.
	ErrMalformedShape = errors.New("malformed policy payload")

	// ErrNoPoliciesFound means the policy collection was present but empty.
	ErrNoPoliciesFound = errors.New("no Ranger policies found")

	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("no matching policy found")

	// ErrInconsistent matches any *InconsistencyError.
	ErrInconsistent = errors.New("inconsistent policy returned")

	// ErrNoCriteria means neither a policy name nor an id was requested
	// outside listing mode.
	ErrNoCriteria = errors.New("policy name or id must be given")
)

// NotFoundError reports that no record in the list carried the requested name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no matching policy found with name '%s' in policy list", e.Name)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InconsistencyError reports that a direct lookup by id returned a record
// with a different id.
type InconsistencyError struct {
	RequestedID string
	ReturnedID  string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("requested policy id '%s' but service returned id '%s'", e.RequestedID, e.ReturnedID)
}

// Is reports whether target is ErrInconsistent.
func (e *InconsistencyError) Is(target error) bool {
	return target == ErrInconsistent
}

// SeverityOf maps an evaluation error to the check outcome it represents.
// Shape and consistency problems are UNKNOWN since no health judgement is
// possible; missing policies are CRITICAL.
func SeverityOf(err error) store.Severity {
	switch {
	case err == nil:
		return store.SeverityOK
	case errors.Is(err, ErrNoPoliciesFound), errors.Is(err, ErrNotFound):
		return store.SeverityCritical
	default:
		return store.SeverityUnknown
	}
}
