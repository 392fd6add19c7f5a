package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindHTTP       ErrorKind = "http-error"
	KindDecode     ErrorKind = "decode-error"
	KindValidation ErrorKind = "validation"
	KindBusy       ErrorKind = "busy"
)

// Error is the classified failure every controller and the backend client
// return. Message is safe to show to a user only for KindHTTP and
// KindValidation.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrBusy             = errors.New("operation already in progress")
	ErrAuthRequired     = errors.New("login required")
	ErrNotAuthenticated = errors.New("not authenticated")
)

func validationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

func busyError(op string) *Error {
	return &Error{Kind: KindBusy, Op: op, Message: "please wait for the previous request to finish", Err: ErrBusy}
}

// KindOf returns the classification of err, or "" when err is not one of ours.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage picks what a user should see for a failed mutation. Server and
// validation messages pass through; transport and decode failures collapse to
// fallback.
func UserMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindHTTP, KindValidation, KindBusy:
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}
