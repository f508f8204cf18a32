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

// Package correlator implements the FIFO command/reply correlation the
// protocol relies on: every command sent enqueues one waiter, and the
// next command/reply or api/response frame received always completes the
// oldest still-pending waiter, in the order commands were sent.
package correlator

import (
	"container/list"
	"sync"

	"github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/esl/event"
)

// Waiter is returned by Enqueue and resolves exactly once, either with an
// event (Deliver) or an error (Abort).
type Waiter struct {
	ch chan result
}

type result struct {
	event *event.Event
	err   error
}

// Wait blocks until the waiter is resolved and returns its event, or an
// error if the connection was aborted before a reply arrived.
func (w *Waiter) Wait() (*event.Event, error) {
	r := <-w.ch
	return r.event, r.err
}

// Correlator is a thread-safe FIFO queue of pending command waiters.
type Correlator struct {
	mu sync.Mutex
	q  *list.List
}

// New returns an empty Correlator.
func New() *Correlator {
	return &Correlator{q: list.New()}
}

// Enqueue registers a new waiter for the next unmatched reply and returns
// it. Callers must enqueue before sending the command that will be
// answered, so replies are matched in send order.
func (c *Correlator) Enqueue() *Waiter {
	w := &Waiter{ch: make(chan result, 1)}

	c.mu.Lock()
	c.q.PushBack(w)
	c.mu.Unlock()

	return w
}

// Deliver resolves the oldest pending waiter with ev. It returns false if
// there was no waiter to deliver to (a reply with nothing outstanding,
// which indicates a protocol desync rather than a normal condition).
func (c *Correlator) Deliver(ev *event.Event) bool {
	w := c.pop()
	if w == nil {
		return false
	}

	w.ch <- result{event: ev}
	return true
}

// Abort resolves every still-pending waiter with err. Used when the
// connection is lost so no caller blocks forever waiting for a reply
// that will never arrive.
func (c *Correlator) Abort(err error) {
	for {
		w := c.pop()
		if w == nil {
			return
		}
		w.ch <- result{err: err}
	}
}

func (c *Correlator) pop() *Waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	front := c.q.Front()
	if front == nil {
		return nil
	}

	c.q.Remove(front)
	return front.Value.(*Waiter)
}

// ErrDesync describes a reply that arrived with no pending command to
// match it. Deliver reports that case by returning false; no function in
// this package returns ErrDesync itself.
var ErrDesync = errors.NotConnected("no pending command to match this reply")
