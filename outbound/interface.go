/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package outbound

import (
	"time"

	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"
)

// PlayAndGetDigitsArgs carries the fixed-order argument set FreeSWITCH's
// play_and_get_digits application expects.
type PlayAndGetDigitsArgs struct {
	MinDigits      string
	MaxDigits      string
	MaxAttempts    string
	Timeout        string
	Terminators    string
	PromptFile     string
	ErrorFile      string
	Variable       string
	DigitsRegex    string
	DigitTimeout   string
	TransferOnFail string
}

// SayArgs describes a say application invocation.
type SayArgs struct {
	ModuleName string
	Lang       string
	SayType    string
	SayMethod  string
	Gender     string
	Text       string
}

// Session is a single outbound call leg: the socket FreeSWITCH dialed in
// on, wrapped with the call-control command surface.
type Session interface {
	// ID returns the short correlation id stamped on the underlying
	// connection for log correlation.
	ID() string

	// Connected reports whether the underlying socket is still live.
	Connected() bool

	// Lingering reports whether the channel has hung up but the switch
	// is keeping the socket open for a final grace period.
	Lingering() bool

	// OutboundConnected reports whether Connect has completed
	// successfully and the channel has not since hung up.
	OutboundConnected() bool

	// UUID returns variable_uuid from the session data captured by
	// Connect, or "" if Connect has not completed.
	UUID() string

	// CallUUID returns variable_call_uuid from the session data.
	CallUUID() string

	// CallerIDNumber returns Caller-Caller-ID-Number from the session
	// data.
	CallerIDNumber() string

	// SessionData returns a copy of the headers captured by Connect.
	SessionData() map[string]string

	// RegisterHandle registers h for events whose routing key equals
	// name, same semantics as the connection-level dispatcher.
	RegisterHandle(name string, h dispatch.Handler)

	// UnregisterHandle removes a handler previously registered under
	// name with RegisterHandle. It returns an invalid-argument error if
	// name has no handler matching h.
	UnregisterHandle(name string, h dispatch.Handler) error

	// Connect sends "connect" and captures the reply headers as session
	// data. Idempotent once OutboundConnected is true.
	Connect() (map[string]string, error)

	// MyEvents sends "myevents" and returns on reply.
	MyEvents() error

	// Answer executes the answer application and returns its reply body.
	Answer() (string, error)

	// Park executes the park application.
	Park() error

	// Linger sends "linger" and returns on reply.
	Linger() error

	// Playback executes the playback application for path. If block is
	// true it awaits the matching CHANNEL_EXECUTE_COMPLETE before
	// returning, up to the optional timeout override (the session's
	// ResponseTimeout, or DefaultResponseTimeout, if omitted).
	Playback(path string, block bool, timeout ...time.Duration) (*event.Event, error)

	// PlayAndGetDigits executes play_and_get_digits. If block is true it
	// awaits completion, up to the optional timeout override, and
	// returns the collected digits.
	PlayAndGetDigits(args PlayAndGetDigitsArgs, block bool, timeout ...time.Duration) (string, error)

	// Say executes the say application. If block is true it awaits
	// completion, up to the optional timeout override.
	Say(args SayArgs, block bool, timeout ...time.Duration) (*event.Event, error)

	// Hangup executes the hangup application with cause. Fire-and-forget:
	// it returns once the command reply (not the hangup event) arrives.
	Hangup(cause string) error

	// UUIDBreak sends "api uuid_break <uuid>". Fails fast with
	// SessionGone while lingering.
	UUIDBreak() error

	// RaiseIfDisconnected returns SessionGone if the channel has hung up.
	RaiseIfDisconnected() error

	// WithConnected runs fn only if the session is connected on entry,
	// and reports disconnection detected on exit in preference to fn's
	// own error.
	WithConnected(fn func() error) error

	// Close tears down the underlying connection.
	Close() error
}

// Application is run once per accepted call, with its Session already
// connected by the server.
type Application interface {
	Run(s Session)
}

// ApplicationFunc adapts a plain function to the Application interface.
type ApplicationFunc func(s Session)

// Run calls f(s).
func (f ApplicationFunc) Run(s Session) {
	f(s)
}

// Server accepts outbound ESL connections and dispatches each one to an
// Application.
type Server interface {
	// Listen binds the first available configured port and runs the
	// accept loop until Stop is called. Once the listener closes, it
	// waits for every active session's Application to finish before
	// returning.
	Listen() error

	// BoundPort returns the port Listen actually bound, or 0 before
	// Listen succeeds.
	BoundPort() int

	// Stop closes the listener and returns without waiting; the waiting
	// for active sessions happens in Listen.
	Stop() error
}

// NewServer validates cfg and returns a Server ready to Listen, running
// app for every accepted call.
func NewServer(cfg ServerConfig, app Application) (Server, error) {
	return newServer(cfg, app)
}
