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

package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type model struct {
	mu  sync.RWMutex
	lvl Level
	fld Fields
	log *logrus.Logger
}

// NewLogrus returns a Logger backed by the given logrus.Logger. If out is
// nil, logrus.StandardLogger() is used.
func NewLogrus(out *logrus.Logger, lvl Level, f Fields) Logger {
	if out == nil {
		out = logrus.StandardLogger()
	}

	out.SetLevel(lvl.Logrus())

	if f == nil {
		f = NewFields()
	}

	return &model{
		lvl: lvl,
		fld: f,
		log: out,
	}
}

func newDiscard() Logger {
	out := logrus.New()
	out.SetOutput(io.Discard)
	out.SetLevel(logrus.PanicLevel)

	return &model{
		lvl: NilLevel,
		fld: NewFields(),
		log: out,
	}
}

func (o *model) SetLevel(lvl Level) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lvl = lvl
	o.log.SetLevel(lvl.Logrus())
}

func (o *model) GetLevel() Level {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.lvl
}

func (o *model) SetFields(f Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f == nil {
		f = NewFields()
	}

	o.fld = f
}

func (o *model) GetFields() Fields {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.fld
}

func (o *model) WithFields(f Fields) Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return &model{
		lvl: o.lvl,
		fld: o.fld.Merge(f),
		log: o.log,
	}
}

func (o *model) entry(f []Fields) *logrus.Entry {
	o.mu.RLock()
	base := o.fld
	o.mu.RUnlock()

	for _, i := range f {
		base = base.Merge(i)
	}

	return o.log.WithFields(base.Logrus())
}

func (o *model) Debug(msg string, f ...Fields) {
	o.entry(f).Debug(msg)
}

func (o *model) Info(msg string, f ...Fields) {
	o.entry(f).Info(msg)
}

func (o *model) Warn(msg string, f ...Fields) {
	o.entry(f).Warn(msg)
}

func (o *model) Error(msg string, f ...Fields) {
	o.entry(f).Error(msg)
}

func (o *model) ErrorAttach(err error, msg string, f ...Fields) error {
	if err == nil {
		o.entry(f).Error(msg)
		return nil
	}

	o.entry(f).WithError(err).Error(msg)
	return err
}
