package app

import "fmt"

// Code classifies a handler failure. The set is closed: every gateway handler
// returns either a result or an Error carrying one of these codes.
type Code int

const (
	CodeInvalidArgument Code = iota + 1
	CodeNotFound
	CodePermissionDenied
	CodeFailedPrecondition
	CodeConflict
	CodeInternal
)

// Error is the typed failure returned by gateway handlers.
type Error struct {
	Code   Code
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

var (
	ErrMatchIDRequired = &Error{Code: CodeInvalidArgument, Reason: "match_id_required"}
	ErrMatchNotFound   = &Error{Code: CodeNotFound, Reason: "match_not_found"}
	ErrMatchFull       = &Error{Code: CodeFailedPrecondition, Reason: "match_full"}
	ErrNotCreator      = &Error{Code: CodePermissionDenied, Reason: "not_creator"}
	ErrConflict        = &Error{Code: CodeConflict, Reason: "version_conflict"}
)

// internalError wraps a store or host failure unrelated to caller input.
func internalError(err error) *Error {
	return &Error{Code: CodeInternal, Reason: "internal", cause: err}
}
