package families

import (
	"errors"
	"net/http"
)

// Error kinds. Every *Error returned by this package wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrFamilyNotFound     = errors.New("family not found")
	ErrUnauthorizedAction = errors.New("unauthorized action")
	ErrAlreadyMember      = errors.New("already a member")
	ErrIllegalOperation   = errors.New("illegal operation")
	ErrInvalidArgument    = errors.New("invalid argument")
	// ErrConflict reports a concurrent writer; the operation may be retried.
	ErrConflict = errors.New("concurrent modification")
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	Kind error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool {
	return e != nil && errors.Is(e.Kind, ErrConflict)
}

func membershipNotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "MEMBERSHIP_NOT_FOUND", Message: msg, Kind: ErrMembershipNotFound}
}

func familyNotFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: "FAMILY_NOT_FOUND", Message: "family not found", Kind: ErrFamilyNotFound}
}

func unauthorized(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "UNAUTHORIZED_ACTION", Message: msg, Kind: ErrUnauthorizedAction}
}

func alreadyMember() *Error {
	return &Error{Status: http.StatusConflict, Code: "ALREADY_MEMBER", Message: "user is already a member of this family", Kind: ErrAlreadyMember}
}

func illegalOperation(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: "ILLEGAL_OPERATION", Message: msg, Kind: ErrIllegalOperation}
}

func invalidArgument(msg string, details map[string]any) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: msg, Details: details, Kind: ErrInvalidArgument}
}

func conflict() *Error {
	return &Error{Status: http.StatusConflict, Code: "CONFLICT", Message: "family was modified concurrently; retry the request", Kind: ErrConflict}
}
