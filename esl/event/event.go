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

// Package event holds the ESL Event type: a header map plus an optional
// body, and the percent-decoding header-block parser shared by every
// connection mode.
package event

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderContentDisposition = "Content-Disposition"
	HeaderEventName          = "Event-Name"
	HeaderEventSubclass      = "Event-Subclass"
	HeaderReplyText          = "Reply-Text"

	ContentTypeAuthRequest      = "auth/request"
	ContentTypeCommandReply     = "command/reply"
	ContentTypeAPIResponse      = "api/response"
	ContentTypeDisconnectNotice = "text/disconnect-notice"
	ContentTypeRudeRejection    = "text/rude-rejection"
	ContentTypeLogData          = "log/data"
	ContentDispositionLinger    = "linger"
	EventNameCustom             = "CUSTOM"
)

// Event is a single ESL frame: a set of headers plus an optional raw body.
// Headers are stored exactly as decoded off the wire (already
// percent-decoded); Body holds the bytes read per Content-Length, when
// the frame carries one.
type Event struct {
	Headers map[string]string
	Body    []byte
}

// New returns an empty Event ready to be populated.
func New() *Event {
	return &Event{Headers: make(map[string]string)}
}

// Parse decodes a raw header block: the entire block is percent-decoded
// as one string before being split into lines, so an escaped newline
// inside a value (e.g. a multiline variable) survives as a literal
// newline rather than a line break, and is rejoined via a continuation
// line at parse time. Lines without a "key: value" separator are
// appended to the previous value.
func Parse(raw string) (*Event, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		// Fall back to the raw block: a malformed escape should not make
		// the whole frame unusable, only leave it undecoded.
		decoded = raw
	}

	e := New()

	var lastKey string
	for _, line := range strings.Split(strings.TrimSpace(decoded), "\n") {
		line = strings.TrimRight(line, "\r")

		if key, value, ok := strings.Cut(line, ": "); ok {
			lastKey = strings.TrimSpace(key)
			e.Headers[lastKey] = strings.TrimSpace(value)
			continue
		}

		if lastKey == "" {
			continue
		}

		e.Headers[lastKey] = strings.TrimSpace(e.Headers[lastKey] + "\n" + line)
	}

	return e, nil
}

// Merge decodes raw the same way Parse does and adds the resulting
// headers into e, overwriting any existing key. This mirrors the
// original protocol's behavior of folding a generic event's body (itself
// a header block) back into the event that carried it.
func (e *Event) Merge(raw string) error {
	other, err := Parse(raw)
	if err != nil {
		return err
	}

	for k, v := range other.Headers {
		e.Headers[k] = v
	}

	return nil
}

// Get returns the header value for key, or "" if absent.
func (e *Event) Get(key string) string {
	if e == nil {
		return ""
	}
	return e.Headers[key]
}

// GetOk returns the header value for key and whether it was present.
func (e *Event) GetOk(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Headers[key]
	return v, ok
}

// ContentType returns the Content-Type header.
func (e *Event) ContentType() string {
	return e.Get(HeaderContentType)
}

// Name returns the Event-Name header.
func (e *Event) Name() string {
	return e.Get(HeaderEventName)
}

// Subclass returns the Event-Subclass header.
func (e *Event) Subclass() string {
	return e.Get(HeaderEventSubclass)
}

// ContentLength returns the parsed Content-Length header and whether it
// was present and valid.
func (e *Event) ContentLength() (int, bool) {
	v, ok := e.GetOk(HeaderContentLength)
	if !ok {
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}

	return n, true
}

// Text returns the Body as a string.
func (e *Event) Text() string {
	return string(e.Body)
}
