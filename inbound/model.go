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
	"fmt"
	"net"
	"strings"
	"time"

	liberr "github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/esl/conn"
	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"
)

type model struct {
	cfg Config
	c   *conn.Connection
}

func dial(ctx context.Context, cfg Config) (*model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, liberr.InvalidArgument("invalid inbound config", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	nc, err := net.DialTimeout("tcp", addr, timeout.Time())
	if err != nil {
		return nil, liberr.NotConnected(fmt.Sprintf("dialing %s", addr), err)
	}

	c := conn.New(ctx, nc, conn.Options{LogFunc: cfg.LogFunc})
	c.Start()

	select {
	case <-c.AuthGate():
	case <-time.After(timeout.Time()):
		_ = c.Close()
		return nil, liberr.Timeout("timed out waiting for auth/request")
	case <-ctx.Done():
		_ = c.Close()
		return nil, liberr.Timeout("context canceled waiting for auth/request", ctx.Err())
	}

	if !c.Connected() {
		return nil, liberr.NotConnected("server closed connection before authentication")
	}

	m := &model{cfg: cfg, c: c}

	if err := m.authenticate(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return m, nil
}

func (m *model) authenticate() error {
	resp, err := m.c.Send("auth " + m.cfg.Password)
	if err != nil {
		return liberr.NotConnected("sending auth command", err)
	}

	if resp.Get(event.HeaderReplyText) != "+OK accepted" {
		return liberr.InvalidArgument("invalid password")
	}

	return nil
}

func (m *model) RegisterHandle(name string, h dispatch.Handler) {
	m.c.Dispatcher().Register(name, h)
}

func (m *model) UnregisterHandle(name string, h dispatch.Handler) error {
	return m.c.Dispatcher().Deregister(name, h)
}

func (m *model) SendCommand(command string) (*event.Event, error) {
	return m.c.Send(command)
}

func (m *model) Api(command string) (string, error) {
	resp, err := m.c.Send("api " + command)
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

func (m *model) Events(ctx context.Context, filters ...string) (*event.Event, error) {
	return m.c.Send("events plain " + strings.Join(filters, " "))
}

func (m *model) Connected() bool {
	return m.c.Connected()
}

func (m *model) Close() error {
	if m.c.Connected() {
		_, _ = m.c.Send("exit")
	}

	return m.c.Close()
}
