// Package apierr carries an explicit HTTP status and stable error code
// through an error chain, letting handlers override the default
// kind-to-status mapping for a specific response.
package apierr

import "fmt"

// Error pins the status and code a handler wants on the wire. The wrapped
// error keeps the underlying cause for logs.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
