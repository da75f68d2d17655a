package models

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can decide how to surface it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthorization
	KindNotFound
	KindCapacity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "ConflictError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindNotFound:
		return "NotFoundError"
	case KindCapacity:
		return "CapacityError"
	default:
		return "InternalError"
	}
}

// Error is the structured error returned by every project operation.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalid = &Error{Kind: KindValidation, Code: "ValidationError", Message: "invalid input"}

	ErrNameTaken         = &Error{Kind: KindConflict, Code: "NameTaken", Message: "project name already taken"}
	ErrDuplicateStem     = &Error{Kind: KindConflict, Code: "DuplicateStem", Message: "stem already queued"}
	ErrAlreadyRegistered = &Error{Kind: KindConflict, Code: "AlreadyRegistered", Message: "user already registered in voting group"}
	ErrNullifierSpent    = &Error{Kind: KindConflict, Code: "NullifierAlreadySpent", Message: "nullifier already spent for this stem"}
	ErrConcurrentUpdate  = &Error{Kind: KindConflict, Code: "ConcurrentUpdate", Message: "document changed concurrently"}
	ErrCollaboratorOnly  = &Error{Kind: KindAuthorization, Code: "CollaboratorOnly", Message: "only collaborators may do this"}
	ErrNotEligibleVoter  = &Error{Kind: KindAuthorization, Code: "NotEligibleVoter", Message: "identity is not a member of the voting group"}
	ErrProjectNotFound   = &Error{Kind: KindNotFound, Code: "ProjectNotFound", Message: "project not found"}
	ErrUserNotFound      = &Error{Kind: KindNotFound, Code: "UserNotFound", Message: "user not found"}
	ErrStemNotFound      = &Error{Kind: KindNotFound, Code: "StemNotFound", Message: "stem not found"}
	ErrStemNotQueued     = &Error{Kind: KindNotFound, Code: "StemNotQueued", Message: "stem is not queued"}
	ErrNotRegistered     = &Error{Kind: KindNotFound, Code: "NotRegistered", Message: "user is not registered in voting group"}
	ErrNoCapacity        = &Error{Kind: KindCapacity, Code: "NoCapacity", Message: "track limit reached"}
)

// Invalid builds a validation error for a single field.
func Invalid(field, format string, args ...any) error {
	return &Error{
		Kind:    KindValidation,
		Code:    ErrInvalid.Code,
		Message: field + ": " + fmt.Sprintf(format, args...),
	}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
