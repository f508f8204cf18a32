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

// Package dispatch routes received events to registered handlers by
// name, in the same priority order the original protocol uses, and
// isolates handler panics so one bad handler never kills the connection.
package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	liberr "github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/esl/event"
	"github.com/nabbar/eslswitch/logger"
)

const (
	// NameDisconnect is the synthetic handler name a text/disconnect-notice
	// frame is routed to, regardless of its own Event-Name.
	NameDisconnect = "DISCONNECT"
	// NameLog is the fallback handler name used for log/data frames that
	// have no handler registered under their own name.
	NameLog = "log"
	// NameWildcard is the catch-all handler name used when nothing more
	// specific matched.
	NameWildcard = "*"
	// DefaultQueueSize bounds the number of events buffered between the
	// connection's receive loop and the dispatcher's worker goroutine.
	DefaultQueueSize = 256
)

// Handler processes one delivered event. Handlers run on the dispatcher's
// single worker goroutine, in registration order, so ordering guarantees
// hold without the handler doing its own locking.
type Handler func(ev *event.Event)

// Dispatcher owns the named handler registry and the bounded delivery
// queue events are dispatched from.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan *event.Event
	before   Handler
	after    Handler
	log      logger.Logger
}

// New returns a Dispatcher with the given queue size (DefaultQueueSize if
// <= 0) and optional logger.
func New(queueSize int, fl logger.FuncLog) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Dispatcher{
		handlers: make(map[string][]Handler),
		queue:    make(chan *event.Event, queueSize),
		log:      logger.New(fl),
	}
}

// Register adds h under name. Multiple handlers may be registered under
// the same name; they run in registration order.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[name] = append(d.handlers[name], h)
}

// Deregister removes the first handler registered under name whose
// underlying function matches h, identified by comparing code pointers
// (reflect.Value.Pointer). It
// returns an InvalidArgument error if name has no handlers or none of
// them match h.
func (d *Dispatcher) Deregister(name string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.handlers[name]
	target := reflect.ValueOf(h).Pointer()

	for i, registered := range list {
		if reflect.ValueOf(registered).Pointer() == target {
			d.handlers[name] = append(list[:i], list[i+1:]...)
			return nil
		}
	}

	return liberr.InvalidArgument(fmt.Sprintf("no handler registered for %q matches the given function", name))
}

// SetBeforeHandle sets a handler invoked before the matched handlers for
// every dispatched event, regardless of which name matched. Pass nil to
// clear it.
func (d *Dispatcher) SetBeforeHandle(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.before = h
}

// SetAfterHandle sets a handler invoked after the matched handlers for
// every dispatched event. Pass nil to clear it.
func (d *Dispatcher) SetAfterHandle(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.after = h
}

// Key computes the handler-registry name ev should be routed to,
// following the priority order: a CUSTOM event routes by its
// Event-Subclass; a disconnect notice always routes to NameDisconnect
// regardless of its own Event-Name; everything else routes by
// Event-Name. The caller falls back to NameLog then NameWildcard when no
// handler is registered for the returned key.
func (d *Dispatcher) Key(ev *event.Event) string {
	if ev.ContentType() == event.ContentTypeDisconnectNotice {
		return NameDisconnect
	}

	if ev.Name() == event.EventNameCustom {
		return ev.Subclass()
	}

	return ev.Name()
}

// Enqueue pushes ev onto the delivery queue. It blocks if the queue is
// full, applying backpressure to the connection's receive loop.
func (d *Dispatcher) Enqueue(ev *event.Event) {
	d.queue <- ev
}

// Run drains the delivery queue and dispatches each event until ctx is
// canceled or Close is called. It is meant to run on its own goroutine,
// one per connection, so handler execution order matches delivery order.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.queue:
			if !ok {
				return
			}
			d.dispatch(ev)
		}
	}
}

// Close stops future Run iterations once the queue drains.
func (d *Dispatcher) Close() {
	close(d.queue)
}

func (d *Dispatcher) dispatch(ev *event.Event) {
	name := d.Key(ev)

	d.mu.RLock()
	handlers := d.handlers[name]
	if len(handlers) == 0 && ev.ContentType() == event.ContentTypeLogData {
		handlers = d.handlers[NameLog]
	}
	if len(handlers) == 0 {
		handlers = d.handlers[NameWildcard]
	}
	before := d.before
	after := d.after
	d.mu.RUnlock()

	if before != nil {
		d.safeExec(before, ev)
	}

	for _, h := range handlers {
		d.safeExec(h, ev)
	}

	if after != nil {
		d.safeExec(after, ev)
	}
}

func (d *Dispatcher) safeExec(h Handler, ev *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked", logger.NewFields().
				Add("recovered", fmt.Sprintf("%v", r)).
				Add("event", ev.Headers))
		}
	}()

	h(ev)
}
