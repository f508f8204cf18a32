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
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/esl/conn"
	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"
	"github.com/nabbar/eslswitch/logger"
)

const (
	variablePrefix           = "variable_"
	headerVariableUUID       = variablePrefix + "uuid"
	headerVariableCallUUID   = variablePrefix + "call_uuid"
	headerCallerIDNumber     = "Caller-Caller-ID-Number"
	eventChannelExecComplete = "CHANNEL_EXECUTE_COMPLETE"
	eventChannelHangup       = "CHANNEL_HANGUP"
	variableCurrentApp       = "current_application"
)

type sessionOptions struct {
	ResponseTimeout time.Duration
	QueueSize       int
	LogFunc         logger.FuncLog
}

type expectedEntry struct {
	variable string
	value    string
	ch       chan expectedResult
}

type expectedResult struct {
	event *event.Event
	err   error
}

type model struct {
	c   *conn.Connection
	opt sessionOptions
	log logger.Logger

	mu       sync.RWMutex
	data     map[string]string
	expected map[string][]*expectedEntry

	outboundConnected atomic.Bool
}

func newSession(nc net.Conn, opt sessionOptions) *model {
	m := &model{
		c:        conn.New(context.Background(), nc, conn.Options{QueueSize: opt.QueueSize, LogFunc: opt.LogFunc}),
		opt:      opt,
		log:      logger.New(opt.LogFunc),
		data:     map[string]string{},
		expected: map[string][]*expectedEntry{},
	}

	m.c.Dispatcher().SetBeforeHandle(m.onEvent)
	m.c.Dispatcher().Register(eventChannelHangup, m.onHangup)
	m.c.Dispatcher().Register(dispatch.NameDisconnect, m.onDisconnect)
	m.c.Start()

	return m
}

func (m *model) ID() string {
	return m.c.ID()
}

func (m *model) Connected() bool {
	return m.c.Connected()
}

func (m *model) Lingering() bool {
	return m.c.Lingering()
}

func (m *model) OutboundConnected() bool {
	return m.outboundConnected.Load()
}

func (m *model) header(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key]
}

func (m *model) UUID() string {
	return m.header(headerVariableUUID)
}

func (m *model) CallUUID() string {
	return m.header(headerVariableCallUUID)
}

func (m *model) CallerIDNumber() string {
	return m.header(headerCallerIDNumber)
}

func (m *model) SessionData() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

func (m *model) RegisterHandle(name string, h dispatch.Handler) {
	m.c.Dispatcher().Register(name, h)
}

func (m *model) UnregisterHandle(name string, h dispatch.Handler) error {
	return m.c.Dispatcher().Deregister(name, h)
}

func (m *model) Connect() (map[string]string, error) {
	if m.outboundConnected.Load() {
		return m.SessionData(), nil
	}

	resp, err := m.c.Send("connect")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.data = resp.Headers
	m.mu.Unlock()

	m.outboundConnected.Store(true)

	return m.SessionData(), nil
}

func (m *model) MyEvents() error {
	_, err := m.c.Send("myevents")
	return err
}

func (m *model) Linger() error {
	_, err := m.c.Send("linger")
	return err
}

// callCommand composes the sendmsg/call-command/execute-app-name block the
// switch expects to run an application on the channel.
func (m *model) callCommand(app string, args string) (*event.Event, error) {
	if m.c.Lingering() {
		return nil, liberr.SessionGone("session is lingering, no further commands accepted")
	}

	cmd := "sendmsg\ncall-command: execute\nexecute-app-name: " + app
	if args != "" {
		cmd += "\nexecute-app-arg: " + args
	}

	return m.c.Send(cmd)
}

func (m *model) Answer() (string, error) {
	resp, err := m.callCommand("answer", "")
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (m *model) Park() error {
	_, err := m.callCommand("park", "")
	return err
}

func (m *model) Hangup(cause string) error {
	if cause == "" {
		cause = "NORMAL_CLEARING"
	}
	_, err := m.callCommand("hangup", cause)
	return err
}

func (m *model) UUIDBreak() error {
	if m.c.Lingering() {
		return liberr.SessionGone("session is lingering, no further commands accepted")
	}
	_, err := m.c.Send("api uuid_break " + m.UUID())
	return err
}

// responseTimeout picks the first positive duration in override, falling
// back to the session's configured ResponseTimeout, or
// DefaultResponseTimeout if that is unset too.
func (m *model) responseTimeout(override []time.Duration) time.Duration {
	for _, d := range override {
		if d > 0 {
			return d
		}
	}
	if m.opt.ResponseTimeout <= 0 {
		return DefaultResponseTimeout.Time()
	}
	return m.opt.ResponseTimeout
}

func (m *model) registerExpected(eventName, variable, value string) *expectedEntry {
	e := &expectedEntry{variable: variable, value: value, ch: make(chan expectedResult, 1)}

	m.mu.Lock()
	m.expected[eventName] = append(m.expected[eventName], e)
	m.mu.Unlock()

	return e
}

func (m *model) removeExpected(eventName string, e *expectedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.expected[eventName]
	for i, v := range list {
		if v == e {
			m.expected[eventName] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (e *expectedEntry) wait(timeout time.Duration) (*event.Event, error) {
	select {
	case r := <-e.ch:
		return r.event, r.err
	case <-time.After(timeout):
		return nil, nil
	}
}

// awaitCompletion issues callCommand and, if block is true, waits for the
// matching CHANNEL_EXECUTE_COMPLETE/variable_current_application event
// before returning.
func (m *model) awaitCompletion(app, args, expectApp string, block bool, timeout []time.Duration) (*event.Event, error) {
	if !block {
		return m.callCommand(app, args)
	}

	e := m.registerExpected(eventChannelExecComplete, variableCurrentApp, expectApp)

	if _, err := m.callCommand(app, args); err != nil {
		m.removeExpected(eventChannelExecComplete, e)
		return nil, err
	}

	ev, err := e.wait(m.responseTimeout(timeout))
	m.removeExpected(eventChannelExecComplete, e)
	return ev, err
}

func (m *model) Playback(path string, block bool, timeout ...time.Duration) (*event.Event, error) {
	return m.awaitCompletion("playback", path, "playback", block, timeout)
}

func (m *model) PlayAndGetDigits(args PlayAndGetDigitsArgs, block bool, timeout ...time.Duration) (string, error) {
	joined := strings.Join([]string{
		args.MinDigits, args.MaxDigits, args.MaxAttempts, args.Timeout,
		args.Terminators, args.PromptFile, args.ErrorFile, args.Variable,
		args.DigitsRegex, args.DigitTimeout, args.TransferOnFail,
	}, " ")

	ev, err := m.awaitCompletion("play_and_get_digits", joined, "play_and_get_digits", block, timeout)
	if err != nil || ev == nil {
		return "", err
	}

	return ev.Get(variablePrefix + args.Variable), nil
}

func (m *model) Say(args SayArgs, block bool, timeout ...time.Duration) (*event.Event, error) {
	module := args.ModuleName
	if args.Lang != "" {
		module = fmt.Sprintf("%s:%s", module, args.Lang)
	}

	joined := strings.Join([]string{module, args.SayType, args.SayMethod, args.Gender, args.Text}, " ")

	return m.awaitCompletion("say", joined, "say", block, timeout)
}

func (m *model) RaiseIfDisconnected() error {
	if !m.outboundConnected.Load() {
		return liberr.SessionGone("outbound session has gone away")
	}
	return nil
}

func (m *model) WithConnected(fn func() error) error {
	if err := m.RaiseIfDisconnected(); err != nil {
		return err
	}

	err := fn()

	if exitErr := m.RaiseIfDisconnected(); exitErr != nil {
		return exitErr
	}

	return err
}

func (m *model) Close() error {
	return m.c.Close()
}

// onEvent runs before every dispatched event (registered via
// SetBeforeHandle) and completes any expected-event waiter whose variable
// match is satisfied, regardless of whether a more specific handler is
// also registered for this event's routing key.
func (m *model) onEvent(ev *event.Event) {
	name := ev.Name()

	m.mu.RLock()
	entries := append([]*expectedEntry(nil), m.expected[name]...)
	m.mu.RUnlock()

	for _, e := range entries {
		v, ok := ev.GetOk(variablePrefix + e.variable)
		if !ok || v != e.value {
			continue
		}

		select {
		case e.ch <- expectedResult{event: ev}:
		default:
		}
		m.removeExpected(name, e)
		return
	}
}

func (m *model) onHangup(ev *event.Event) {
	m.outboundConnected.Store(false)
	m.log.Info("caller has gone away", logger.NewFields().Add("caller", m.CallerIDNumber()))
}

func (m *model) onDisconnect(ev *event.Event) {
	m.outboundConnected.Store(false)

	m.mu.Lock()
	pending := m.expected
	m.expected = map[string][]*expectedEntry{}
	m.mu.Unlock()

	for _, entries := range pending {
		for _, e := range entries {
			select {
			case e.ch <- expectedResult{err: liberr.SessionGone("outbound session has gone away")}:
			default:
			}
		}
	}
}
