package pubadmin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Match them with errors.Is; a *StoreError carries the detail.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("credential rejected")
	ErrConflict   = errors.New("revision conflict")
	ErrRemote     = errors.New("remote error")
	ErrTransport  = errors.New("transport failure")
)

// StoreError describes a failed store or backend operation.
type StoreError struct {
	Kind    error  // one of the Err* kinds above
	Op      string // list, read, create, update, delete, whoami, ...
	Key     string
	Status  int // HTTP status from the remote, 0 when not applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("pubadmin: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Key != "" {
			b.WriteString(" " + e.Key)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches the error kind, so errors.Is(err, ErrConflict) works through
// wrapping.
func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// statusError maps an HTTP status returned by a remote to an error kind.
// conflict lists the statuses the operation treats as a stale revision.
func statusError(op, key string, status int, message string, conflict ...int) *StoreError {
	kind := ErrRemote
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = ErrAuth
	default:
		for _, c := range conflict {
			if status == c {
				kind = ErrConflict
				break
			}
		}
	}
	return &StoreError{Kind: kind, Op: op, Key: key, Status: status, Message: message}
}

// ErrorMessage returns the text shown to an admin for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StoreError
	detail := ""
	if errors.As(err, &se) && se.Message != "" {
		detail = se.Message
	}
	switch {
	case errors.Is(err, ErrValidation):
		if detail != "" {
			return detail
		}
		return "Title and content required"
	case errors.Is(err, ErrAuth):
		return "The credential was rejected. Sign in again."
	case errors.Is(err, ErrConflict):
		return "The post changed since it was loaded (or already exists). Reload it and retry."
	case errors.Is(err, ErrTransport):
		return "Could not reach the post store. Check the connection and retry."
	case IsNotFound(err):
		return "The post no longer exists."
	case detail != "":
		return "The post store returned an error: " + detail
	default:
		return "The post store returned an error."
	}
}
