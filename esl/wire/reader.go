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

// Package wire reads ESL frames off a byte stream: a header block
// terminated by a blank line, and an optional body whose length is
// declared by the header block's Content-Length.
//
// The frame reader talks to bufio directly rather than through a
// delimiter-driven wrapper, since the size-typed buffer constructor that
// wrapper would have needed has no home in this domain.
package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nabbar/eslswitch/esl/event"
	"github.com/nabbar/eslswitch/logger"
)

// DefaultBufferSize matches bufio's own default and is used when a Reader
// is constructed without an explicit size.
const DefaultBufferSize = 4096

// Reader reads successive ESL frames from an underlying byte stream.
type Reader struct {
	br  *bufio.Reader
	log logger.Logger
}

// NewReader returns a Reader buffering reads from r. If size is 0 or
// negative, DefaultBufferSize is used. A nil FuncLog yields a discard
// logger.
func NewReader(r io.Reader, size int, fl logger.FuncLog) *Reader {
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &Reader{
		br:  bufio.NewReaderSize(r, size),
		log: logger.New(fl),
	}
}

// ReadHeaders reads lines until a blank line is reached and parses the
// accumulated block into an Event. The blank-line terminator itself is
// not included in the parsed block.
func (r *Reader) ReadHeaders() (*event.Event, error) {
	var block []byte

	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			return nil, err
		}

		if line == "\n" || line == "\r\n" {
			break
		}

		block = append(block, line...)
	}

	return event.Parse(string(block))
}

// ReadBody reads exactly length bytes, retrying on short reads the way
// the original protocol's socket reader does, and logging a warning each
// time the underlying stream yields fewer bytes than requested.
func (r *Reader) ReadBody(length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}

	buf := make([]byte, length)
	read := 0

	for read < length {
		n, err := r.br.Read(buf[read:])
		read += n

		if err != nil {
			if read < length {
				return buf[:read], err
			}
			break
		}

		if read < length {
			r.log.Warn("short read assembling frame body", logger.NewFields().
				Add("wanted", length).
				Add("got", read))
		}
	}

	return buf, nil
}

// ReadFrame reads one full ESL frame: the header block, then the body
// declared by its Content-Length header, if any. The body is NOT merged
// into the event's headers here — callers decide how to interpret it
// (a command reply's text, an api response's payload, or a further
// header block to fold in) based on Content-Type.
func (r *Reader) ReadFrame() (*event.Event, error) {
	e, err := r.ReadHeaders()
	if err != nil {
		return nil, err
	}

	if length, ok := e.ContentLength(); ok {
		body, err := r.ReadBody(length)
		if err != nil {
			return nil, fmt.Errorf("reading frame body: %w", err)
		}
		e.Body = body
	}

	return e, nil
}
