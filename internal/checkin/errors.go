package checkin

import "errors"

// Sentinel errors for the check-in taxonomy. Use errors.Is.
var (
	ErrInvalidContext    = errors.New("invalid context")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrNotOpen           = errors.New("not open for check-in")
	ErrNotEnrolled       = errors.New("biometric profile not enrolled")
	ErrNoMatch           = errors.New("no match")
	ErrTransient         = errors.New("transient error")
	ErrMalformedOutcome  = errors.New("malformed verification outcome")

	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionClosed  = errors.New("session closed")
	ErrWrongMode      = errors.New("operation not supported in this mode")
)

// Category is a classified failure.
type Category string

// Category values.
const (
	CategoryNone              Category = ""
	CategoryInvalidContext    Category = "invalid-context"
	CategoryCameraUnavailable Category = "camera-unavailable"
	CategoryNotOpen           Category = "not-open"
	CategoryNotEnrolled       Category = "not-enrolled"
	CategoryRecognitionMiss   Category = "recognition-miss"
	CategoryTransient         Category = "transient"
)

// Fatal reports whether the category ends the session.
func (c Category) Fatal() bool {
	switch c {
	case CategoryInvalidContext, CategoryCameraUnavailable, CategoryNotOpen, CategoryNotEnrolled:
		return true
	}
	return false
}

// sentinel maps a category to its sentinel error.
func (c Category) sentinel() error {
	switch c {
	case CategoryInvalidContext:
		return ErrInvalidContext
	case CategoryCameraUnavailable:
		return ErrCameraUnavailable
	case CategoryNotOpen:
		return ErrNotOpen
	case CategoryNotEnrolled:
		return ErrNotEnrolled
	case CategoryRecognitionMiss:
		return ErrNoMatch
	}
	return ErrTransient
}

// Error is a classified check-in failure. Reason is the human readable text
// shown to the user, verbatim from the server when one was provided.
type Error struct {
	Category Category
	Reason   string
	Err      error
}

// NewError builds a classified error.
func NewError(category Category, reason string, err error) *Error {
	return &Error{Category: category, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Category.sentinel().Error()
}

// Unwrap exposes both the category sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category.sentinel()}
	}
	return []error{e.Category.sentinel(), e.Err}
}

// Coded is implemented by transport errors that carry a structured error
// code from the verification service.
type Coded interface {
	error
	ErrorCode() string
}
