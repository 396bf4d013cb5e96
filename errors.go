package server

import "fmt"

// ReasonError is the machine-readable failure surfaced to clients. The code
// travels verbatim in the response body; Message is operator-facing only.
type ReasonError struct {
	Code    string
	Message string
}

func (e *ReasonError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrUnauthenticated = &ReasonError{Code: "unauthenticated", Message: "no resolvable identity"}
	ErrRoomNotFound    = &ReasonError{Code: "not_found", Message: "no such room"}
	ErrInviteNotFound  = &ReasonError{Code: "not_found", Message: "no such invite"}
	ErrUserNotFound    = &ReasonError{Code: "not_found", Message: "no such player"}
	ErrForbidden       = &ReasonError{Code: "forbidden", Message: "actor not authorized"}
	ErrWrongWorld      = &ReasonError{Code: "wrong_world", Message: "player is in another world"}
	ErrInvalidTarget   = &ReasonError{Code: "invalid_target", Message: "cannot target yourself"}
	ErrValidation      = &ReasonError{Code: "validation", Message: "malformed payload"}
)

// reasonOf extracts the wire code from any error, defaulting to a generic
// validation code so a stray error never crashes a request.
func reasonOf(err error) string {
	if re, ok := err.(*ReasonError); ok {
		return re.Code
	}
	return "validation"
}

// Reason reports the wire code for err.
func Reason(err error) string { return reasonOf(err) }
