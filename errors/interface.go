/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package errors provides the coded error type used across this library:
// a small, fixed set of kinds describing protocol and connection failures,
// each wrapping an optional parent error and compatible with errors.Is/As.
package errors

import goerrors "errors"

// Code classifies an Error into one of a fixed set of kinds. Callers
// branch on Code rather than comparing error strings.
type Code uint8

const (
	// CodeUnknown is never returned by this package's constructors; it is
	// the zero value of Code.
	CodeUnknown Code = iota
	// CodeNotConnected means the operation requires a live connection that
	// does not currently exist (never dialed, or closed).
	CodeNotConnected
	// CodeSessionGone means the outbound session's peer connection has
	// been closed or reset, and synchronous operations can no longer
	// be satisfied.
	CodeSessionGone
	// CodeInvalidArgument means a caller-supplied argument failed
	// validation before any I/O was attempted.
	CodeInvalidArgument
	// CodeTimeout means a context deadline or explicit timeout elapsed
	// while waiting for a reply or event.
	CodeTimeout
)

func (c Code) String() string {
	switch c {
	case CodeNotConnected:
		return "not connected"
	case CodeSessionGone:
		return "session gone"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the coded error type returned by the dial, send, session and
// configuration operations of this repository. Teardown calls (Close,
// Stop) and the low-level frame reader can return plain errors instead.
// It carries a Code, a human message, and an optional parent error
// reachable through Unwrap.
type Error interface {
	error

	// Code returns the kind of failure this Error represents.
	Code() Code
	// Unwrap returns the parent error, or nil if there is none.
	Unwrap() error
}

type wrapped struct {
	code Code
	msg  string
	err  error
}

func (e *wrapped) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *wrapped) Code() Code {
	return e.code
}

func (e *wrapped) Unwrap() error {
	return e.err
}

func newError(code Code, msg string, parent error) Error {
	return &wrapped{code: code, msg: msg, err: parent}
}

// NotConnected builds a CodeNotConnected Error.
func NotConnected(msg string, parent ...error) Error {
	return newError(CodeNotConnected, msg, firstNonNil(parent))
}

// SessionGone builds a CodeSessionGone Error.
func SessionGone(msg string, parent ...error) Error {
	return newError(CodeSessionGone, msg, firstNonNil(parent))
}

// InvalidArgument builds a CodeInvalidArgument Error.
func InvalidArgument(msg string, parent ...error) Error {
	return newError(CodeInvalidArgument, msg, firstNonNil(parent))
}

// Timeout builds a CodeTimeout Error.
func Timeout(msg string, parent ...error) Error {
	return newError(CodeTimeout, msg, firstNonNil(parent))
}

func firstNonNil(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Is reports whether e is an Error (directly or via Unwrap) with the
// given Code.
func Is(e error, code Code) bool {
	var err Error
	if goerrors.As(e, &err) {
		return err.Code() == code
	}
	return false
}

// Get returns e as an Error if it is one (directly or via Unwrap).
func Get(e error) (Error, bool) {
	var err Error
	ok := goerrors.As(e, &err)
	return err, ok
}
