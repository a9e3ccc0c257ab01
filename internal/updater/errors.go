package updater

import (
	"errors"
	"strings"
)

// Code classifies an update failure for API clients.
type Code string

const (
	CodeDisabled       Code = "DISABLED"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeCheckFailed    Code = "CHECK_FAILED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeNoUpdate       Code = "NO_UPDATE"
	CodeReleaseFailed  Code = "RELEASE_FAILED"
	CodeBackupFailed   Code = "BACKUP_FAILED"
	CodeApplyFailed    Code = "APPLY_FAILED"
	CodeNoBackup       Code = "NO_BACKUP"
	CodeRollbackFailed Code = "ROLLBACK_FAILED"
)

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrDisabled     = &Error{Code: CodeDisabled}
	ErrInvalidState = &Error{Code: CodeInvalidState}
	ErrNoUpdate     = &Error{Code: CodeNoUpdate}
	ErrNoBackup     = &Error{Code: CodeNoBackup}
)

// Error is a failed check, apply or rollback.
type Error struct {
	Op      string
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("update")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	b.WriteString(": ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Code))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func opError(op string, code Code, message string, err error) *Error {
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

// CodeOf returns the code of an update error, "" for other errors.
func CodeOf(err error) Code {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}
