package engine

import (
	"errors"
	"fmt"
)

// FailureClass is the four-way failure taxonomy shared by both engines.
type FailureClass string

const (
	// ClassWrongPassword covers both "password required" and "wrong
	// password": the engine cannot tell them apart before decryption.
	ClassWrongPassword FailureClass = "wrong_password"

	// ClassEngineUnavailable means the engine itself could not be invoked,
	// e.g. the external binary is not installed.
	ClassEngineUnavailable FailureClass = "engine_unavailable"

	// ClassUnsupportedFormat means the engine does not handle this archive
	// format or compression method.
	ClassUnsupportedFormat FailureClass = "unsupported_format"

	// ClassCorruptArchive means the archive data itself is damaged.
	ClassCorruptArchive FailureClass = "corrupt_archive"

	// ClassOther is everything else.
	ClassOther FailureClass = "other"
)

// Error is a classified extraction failure.
type Error struct {
	Class  FailureClass
	Engine string
	Err    error
}

func NewError(class FailureClass, engine string, err error) *Error {
	return &Error{Class: class, Engine: engine, Err: err}
}

func Errorf(class FailureClass, engine string, format string, args ...any) *Error {
	return &Error{Class: class, Engine: engine, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class from err, defaulting to ClassOther for
// unclassified errors. A nil err has no class.
func ClassOf(err error) FailureClass {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassOther
}

// IsWrongPassword reports whether err is a password failure, which callers
// must route to password resolution instead of the fallback engine.
func IsWrongPassword(err error) bool {
	return ClassOf(err) == ClassWrongPassword
}
