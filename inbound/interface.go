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

package inbound

import (
	"context"

	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"
)

// ESL is an authenticated inbound connection to FreeSWITCH's event
// socket: commands can be sent and replies awaited, and events can be
// subscribed to and handled asynchronously.
type ESL interface {
	// RegisterHandle registers h to run for every delivered event whose
	// routing key (see dispatch.Dispatcher.Key) equals name.
	RegisterHandle(name string, h dispatch.Handler)

	// UnregisterHandle removes a handler previously registered under name
	// with RegisterHandle. It returns an invalid-argument error if name
	// has no handler matching h.
	UnregisterHandle(name string, h dispatch.Handler) error

	// Api sends a blocking "api <command>" and returns its response body.
	Api(command string) (string, error)

	// SendCommand sends an arbitrary single-line command and returns the
	// raw reply event.
	SendCommand(command string) (*event.Event, error)

	// Events subscribes to the given event names/filters via
	// "events plain <filters>" and returns the command's reply event.
	Events(ctx context.Context, filters ...string) (*event.Event, error)

	// Connected reports whether the underlying connection is still live.
	Connected() bool

	// Close sends "exit" (best effort) and tears down the connection.
	Close() error
}

// Dial connects to cfg.Host:cfg.Port, performs the auth handshake, and
// returns a ready-to-use ESL. The returned ESL owns its connection and
// must be Closed by the caller.
func Dial(ctx context.Context, cfg Config) (ESL, error) {
	return dial(ctx, cfg)
}
