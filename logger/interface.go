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

// Package logger provides the structured logging surface shared by every
// component of this library. It is a thin, opinionated wrapper around
// logrus: callers inject a FuncLog factory at construction time, or leave
// it nil to get a discard logger, so the library never writes to stdout
// on its own.
package logger

// FuncLog is a function type that returns a Logger instance. Components
// accept a FuncLog rather than a Logger directly so the logger can be
// swapped or lazily constructed by the caller.
type FuncLog func() Logger

// Logger is the minimal structured-logging surface used across this
// repository. It is intentionally small: no multi-sink configuration, no
// framework hooks, just leveled, field-carrying log lines.
type Logger interface {
	// SetLevel changes the minimal level of logged messages.
	SetLevel(lvl Level)

	// GetLevel returns the minimal level of logged messages.
	GetLevel() Level

	// SetFields replaces the default fields attached to every entry.
	SetFields(f Fields)

	// GetFields returns the default fields attached to every entry.
	GetFields() Fields

	// WithFields returns a child Logger with the given fields merged on
	// top of the current default fields. The parent is left unchanged.
	WithFields(f Fields) Logger

	// Debug, Info, Warn and Error log a message at the matching level.
	Debug(msg string, f ...Fields)
	Info(msg string, f ...Fields)
	Warn(msg string, f ...Fields)
	Error(msg string, f ...Fields)

	// ErrorAttach logs err at Error level, attaching it as a field, and
	// returns err unchanged so it can be used inline: `return log.ErrorAttach(err)`.
	ErrorAttach(err error, msg string, f ...Fields) error
}

// New returns a Logger backed by logrus. If fl is nil, a discard Logger is
// returned instead so components can always call fl() safely.
func New(fl FuncLog) Logger {
	if fl == nil {
		return newDiscard()
	}

	if l := fl(); l != nil {
		return l
	}

	return newDiscard()
}
