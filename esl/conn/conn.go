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

// Package conn implements the connection engine shared by inbound and
// outbound mode: the read loop that classifies incoming frames, the
// write path that serializes commands, the auth handshake gate, and the
// wiring between the frame reader, the FIFO correlator and the event
// dispatcher.
package conn

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-uuid"

	liberr "github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/esl/correlator"
	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"
	"github.com/nabbar/eslswitch/esl/wire"
	"github.com/nabbar/eslswitch/ioutils/mapCloser"
	"github.com/nabbar/eslswitch/logger"
)

// Connection wraps one ESL TCP socket, in either inbound or outbound
// mode, with the read/dispatch/correlate machinery common to both.
type Connection struct {
	id string

	nc net.Conn
	rd *wire.Reader
	wr *wire.Writer

	cor *correlator.Correlator
	dsp *dispatch.Dispatcher
	log logger.Logger

	clo mapCloser.Closer

	connected atomic.Bool
	lingering atomic.Bool
	closed    atomic.Bool

	authGate   chan struct{}
	authOnce   sync.Once
	sendMu     sync.Mutex
	runCancel  context.CancelFunc
	runContext context.Context
}

// Options configures a new Connection.
type Options struct {
	QueueSize int
	LogFunc   logger.FuncLog
}

// New wraps nc as a Connection ready to Start. The connection is
// considered live (connected) immediately, matching the original
// protocol's behavior for both inbound sockets (post-dial) and outbound
// sessions (post-accept).
func New(ctx context.Context, nc net.Conn, opt Options) *Connection {
	id, _ := uuid.GenerateUUID()

	runCtx, cancel := context.WithCancel(ctx)

	c := &Connection{
		id:         id,
		nc:         nc,
		rd:         wire.NewReader(nc, 0, opt.LogFunc),
		wr:         wire.NewWriter(nc),
		cor:        correlator.New(),
		dsp:        dispatch.New(opt.QueueSize, opt.LogFunc),
		log:        logger.New(opt.LogFunc),
		clo:        mapCloser.New(runCtx),
		authGate:   make(chan struct{}),
		runCancel:  cancel,
		runContext: runCtx,
	}

	c.connected.Store(true)
	c.clo.Add(nc)

	return c
}

// ID returns the short correlation id stamped on this connection for log
// correlation. It is not a protocol field.
func (c *Connection) ID() string {
	return c.id
}

// Dispatcher exposes the event dispatcher so callers can Register
// handlers before or after Start.
func (c *Connection) Dispatcher() *dispatch.Dispatcher {
	return c.dsp
}

// Connected reports whether the connection is still considered live.
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// Lingering reports whether a disconnect-notice with Content-Disposition:
// linger was received, meaning the peer will keep the socket open for a
// short grace period but no further commands should be sent.
func (c *Connection) Lingering() bool {
	return c.lingering.Load()
}

// Start spawns the receive loop and the dispatcher's worker goroutine.
// It must be called exactly once.
func (c *Connection) Start() {
	go c.dsp.Run(c.runContext)
	go c.receiveLoop()
}

// AuthGate returns a channel closed once an auth/request frame (inbound
// mode) or a rude-rejection (any mode) has been observed, releasing a
// caller blocked in a dial/connect handshake.
func (c *Connection) AuthGate() <-chan struct{} {
	return c.authGate
}

func (c *Connection) openAuthGate() {
	c.authOnce.Do(func() { close(c.authGate) })
}

// Send writes a command and blocks until its correlated reply arrives,
// or the connection is aborted. Exactly one frame worth of command text
// is sent, followed by the protocol terminator. Enqueuing the waiter
// and writing the frame happen under the same lock, so concurrent
// callers can never have their waiters queued out of order with
// respect to the bytes actually reaching the wire.
func (c *Connection) Send(data string) (*event.Event, error) {
	if !c.connected.Load() {
		return nil, liberr.NotConnected("connection is not active")
	}

	c.sendMu.Lock()
	w := c.cor.Enqueue()
	err := c.wr.Send(data)
	c.sendMu.Unlock()

	if err != nil {
		return nil, liberr.NotConnected("writing command", err)
	}

	return w.Wait()
}

// Close tears down the connection: cancels the dispatcher and closer
// context, aborts pending command waiters, and closes the socket.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.connected.Store(false)

	c.cor.Abort(liberr.NotConnected("connection closed"))
	c.dsp.Close()
	c.runCancel()

	return c.clo.Close()
}

func (c *Connection) receiveLoop() {
	for {
		ev, err := c.rd.ReadFrame()
		if err != nil {
			if c.connected.Load() {
				c.log.Warn("connection read loop terminated", logger.NewFields().
					Add("id", c.id).
					Add("error", err.Error()))
			}
			_ = c.Close()
			return
		}

		c.handleFrame(ev)
	}
}

// handleFrame classifies one received frame by Content-Type, following
// the same priority the original protocol uses: auth/request opens the
// auth gate, command/reply and api/response resolve the oldest pending
// command waiter, text/disconnect-notice marks the connection
// disconnected (or lingering) and is still delivered to the DISCONNECT
// handler, text/rude-rejection marks disconnected and releases the auth
// gate, and everything else is dispatched as an event; for any content
// type other than log/data, a body (when present) is folded back into the
// event's own headers before dispatch.
func (c *Connection) handleFrame(ev *event.Event) {
	switch ev.ContentType() {
	case event.ContentTypeAuthRequest:
		c.openAuthGate()

	case event.ContentTypeCommandReply:
		ev.Body = []byte(ev.Get(event.HeaderReplyText))
		c.cor.Deliver(ev)

	case event.ContentTypeAPIResponse:
		c.cor.Deliver(ev)

	case event.ContentTypeDisconnectNotice:
		if ev.Get(event.HeaderContentDisposition) == event.ContentDispositionLinger {
			c.lingering.Store(true)
		} else {
			c.connected.Store(false)
		}
		c.cor.Abort(liberr.SessionGone("peer sent disconnect notice"))
		c.dsp.Enqueue(ev)

	case event.ContentTypeRudeRejection:
		c.connected.Store(false)
		c.openAuthGate()
		c.cor.Abort(liberr.NotConnected("peer sent rude rejection"))

	default:
		if ev.ContentType() != event.ContentTypeLogData && len(ev.Body) > 0 {
			if err := ev.Merge(string(ev.Body)); err != nil {
				c.log.Warn("failed folding event body into headers", logger.NewFields().
					Add("id", c.id).
					Add("error", err.Error()))
			}
		}
		c.dsp.Enqueue(ev)
	}
}

// WriteCloser exposes the underlying socket as a plain io.WriteCloser,
// for callers that need direct access alongside the command-correlated
// Send path. Bytes written through it bypass the correlator.
func (c *Connection) WriteCloser() io.WriteCloser {
	return c.nc
}
