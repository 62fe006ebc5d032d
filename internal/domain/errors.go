package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the coarse error category reported to the caller in a signed
// error envelope. The values double as the wire names.
type ErrorKind string

const (
	KindSignatureVerificationFailed ErrorKind = "SignatureVerificationFailed"
	KindWorkspaceConflict           ErrorKind = "WorkspaceConflict"
	KindWorkspaceIOError            ErrorKind = "WorkspaceIOError"
	KindCompileError                ErrorKind = "CompileError"
	KindSPJCompileError             ErrorKind = "SPJCompileError"
	KindInvalidRequest              ErrorKind = "InvalidRequest"
	KindTestCaseNotFound            ErrorKind = "TestCaseNotFound"
	KindSystemError                 ErrorKind = "SystemError"
)

var (
	// ErrMissingToken is returned when the server is started without a shared token.
	ErrMissingToken = errors.New("judge token is not configured")

	// ErrSignatureMismatch is returned when a signature does not match the payload.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrStaleTimestamp is returned when a request timestamp is outside the freshness window.
	ErrStaleTimestamp = errors.New("timestamp outside of freshness window")

	// ErrReplayedRequest is returned when a signature has already been accepted once.
	ErrReplayedRequest = errors.New("request signature already used")

	// ErrTokenMismatch is returned when the token header does not match the configured token.
	ErrTokenMismatch = errors.New("token header mismatch")

	// ErrUnsafePath is returned when a name would escape its owning directory.
	ErrUnsafePath = errors.New("path escapes its owning directory")

	// ErrPoolStopped is returned when work is submitted to a stopped judge pool.
	ErrPoolStopped = errors.New("judge pool is stopped")
)

// JudgeError is the error type returned across component boundaries.
// Kind decides how the gateway reports it; Message is what the caller sees.
type JudgeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *JudgeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *JudgeError) Unwrap() error {
	return e.Err
}

// NewError creates a JudgeError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *JudgeError {
	return &JudgeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err under kind, keeping err's text as the message.
func WrapError(kind ErrorKind, err error) *JudgeError {
	if err == nil {
		return nil
	}
	return &JudgeError{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf classifies any error. Untyped errors are system errors.
func KindOf(err error) ErrorKind {
	var je *JudgeError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindSystemError
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var je *JudgeError
	if errors.As(err, &je) {
		if je.Message != "" {
			return je.Message
		}
		if je.Err != nil {
			return je.Err.Error()
		}
		return string(je.Kind)
	}
	return fmt.Sprintf("%T: %v", err, err)
}
