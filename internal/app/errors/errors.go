// Package errors carries an HTTP status and a client-safe message alongside
// the underlying error, so handlers can translate failures without inspecting
// error strings.
package errors

import "net/http"

// ResponseCodeError wraps a cause with the message and status code the API
// should respond with. The cause stays internal; only Msg is shown to clients.
type ResponseCodeError struct {
	err  error
	msg  string
	code int
}

// New wraps err as an internal server error.
func New(err error, msg string) error {
	return ResponseCodeError{err: err, msg: msg, code: http.StatusInternalServerError}
}

// NewWithCode wraps err with an explicit response status.
func NewWithCode(err error, msg string, code int) error {
	return ResponseCodeError{err: err, msg: msg, code: code}
}

func (rce ResponseCodeError) Error() string { return rce.err.Error() }

// Msg returns the client-facing message.
func (rce ResponseCodeError) Msg() string { return rce.msg }

// Code returns the HTTP status to respond with.
func (rce ResponseCodeError) Code() int { return rce.code }

func (rce ResponseCodeError) Unwrap() error { return rce.err }
