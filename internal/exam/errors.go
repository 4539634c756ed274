package exam

import (
	"errors"
	"fmt"

	"github.com/mind-engage/placement-exam/internal/records"
)

// Code is a machine-readable rejection reason.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeAlreadyRegistered   Code = "ALREADY_REGISTERED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
)

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func reject(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func storeErr(op string, err error) error {
	return &Error{Code: CodeStoreUnavailable, Msg: op, Err: err}
}

// CodeOf classifies err. Errors from the record store that were not wrapped
// by this package still map to CodeStoreUnavailable.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, records.ErrUnavailable) {
		return CodeStoreUnavailable
	}
	return CodeUnknown
}
