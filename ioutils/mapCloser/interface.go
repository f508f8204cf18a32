/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package mapCloser owns the small set of io.Closer instances one
// Connection opens (its socket, today) and closes all of them either
// on an explicit Close or when the context they were registered under
// is canceled, so a dial that gets interrupted never leaks a socket.
package mapCloser

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// Closer registers io.Closer instances and guarantees they all get
// closed exactly once, whether triggered explicitly or by context
// cancellation. All methods are safe for concurrent use.
type Closer interface {
	// Add registers clo for later closing. A no-op once Close has run.
	Add(clo ...io.Closer)

	// Close cancels the context this Closer was built from and closes
	// every registered closer. If any of them fail, it returns one error
	// whose message joins every failure's message with ", ".
	Close() error
}

// pollInterval is how often the background goroutine checks whether
// the context it was handed has been canceled.
const pollInterval = 100 * time.Millisecond

// New returns a Closer that watches ctx and auto-closes every
// registered io.Closer once ctx is done, in addition to an explicit
// Close call.
func New(ctx context.Context) Closer {
	runCtx, cancel := context.WithCancel(ctx)

	c := &closer{
		cancel: cancel,
		closed: new(atomic.Bool),
	}

	go func() {
		for !c.closed.Load() {
			select {
			case <-runCtx.Done():
				_ = c.Close()
				return
			default:
				time.Sleep(pollInterval)
			}
		}
	}()

	return c
}
