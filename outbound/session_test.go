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

package outbound_test

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nabbar/eslswitch/esl/event"
	"github.com/nabbar/eslswitch/outbound"
)

type capturingApp struct {
	sessions chan outbound.Session
}

func (a *capturingApp) Run(s outbound.Session) {
	a.sessions <- s
	// Hold the session open long enough for the test to drive commands
	// on it before the server closes it on return.
	for s.Connected() {
		time.Sleep(5 * time.Millisecond)
	}
}

func readLineOrFail(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("reading from fake peer: %v", err)
	}
	return line
}

// TestPlaybackCompletesOnMatchingEvent drives a real outbound session
// (accepted by a live Server) through connect and a blocking playback,
// verifying that an unrelated CHANNEL_EXECUTE_COMPLETE for a different
// application does not satisfy the waiter but the matching one does.
func TestPlaybackCompletesOnMatchingEvent(t *testing.T) {
	app := &capturingApp{sessions: make(chan outbound.Session, 1)}

	srv, err := outbound.NewServer(outbound.ServerConfig{
		Address:        "127.0.0.1",
		Ports:          []int{0},
		MaxConnections: 1,
	}, app)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	go func() { _ = srv.Listen() }()

	var port int
	for i := 0; i < 200; i++ {
		if port = srv.BoundPort(); port != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if port == 0 {
		t.Fatal("server never bound a port")
	}

	nc, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	br := bufio.NewReader(nc)

	for readLineOrFail(t, br) != "connect\n" {
	}
	readLineOrFail(t, br) // blank terminator
	fmt.Fprint(nc, "Content-Type: command/reply\nvariable_uuid: u-1\n\n")

	var sess outbound.Session
	select {
	case sess = <-app.sessions:
	case <-time.After(3 * time.Second):
		t.Fatal("application was never invoked")
	}

	if sess.UUID() != "u-1" {
		t.Fatalf("expected UUID u-1, got %q", sess.UUID())
	}

	done := make(chan error, 1)
	go func() {
		_, perr := sess.Playback("ivr/welcome", true)
		done <- perr
	}()

	for readLineOrFail(t, br) != "sendmsg\n" {
	}
	for {
		if readLineOrFail(t, br) == "\n" {
			break
		}
	}
	fmt.Fprint(nc, "Content-Type: command/reply\nReply-Text: +OK\n\n")

	// Non-matching completion first: must not satisfy the waiter.
	fmt.Fprint(nc, "Content-Type: text/event-plain\nEvent-Name: CHANNEL_EXECUTE_COMPLETE\n"+
		"variable_current_application: park\n\n")

	select {
	case err := <-done:
		t.Fatalf("Playback returned early on a non-matching event: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	// The matching completion releases the waiter.
	fmt.Fprint(nc, "Content-Type: text/event-plain\nEvent-Name: CHANNEL_EXECUTE_COMPLETE\n"+
		"variable_current_application: playback\n\n")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Playback: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Playback to complete")
	}

	_ = srv.Stop()
}

// TestPlaybackHonorsPerCallTimeout drives a Playback call with an
// explicit response_timeout override shorter than the session default
// and verifies it gives up with no event well before the default would
// have elapsed, since the fake peer never sends a completion event.
func TestPlaybackHonorsPerCallTimeout(t *testing.T) {
	app := &capturingApp{sessions: make(chan outbound.Session, 1)}

	srv, err := outbound.NewServer(outbound.ServerConfig{
		Address:        "127.0.0.1",
		Ports:          []int{0},
		MaxConnections: 1,
	}, app)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	go func() { _ = srv.Listen() }()

	var port int
	for i := 0; i < 200; i++ {
		if port = srv.BoundPort(); port != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if port == 0 {
		t.Fatal("server never bound a port")
	}

	nc, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	br := bufio.NewReader(nc)

	for readLineOrFail(t, br) != "connect\n" {
	}
	readLineOrFail(t, br)
	fmt.Fprint(nc, "Content-Type: command/reply\nvariable_uuid: u-2\n\n")

	var sess outbound.Session
	select {
	case sess = <-app.sessions:
	case <-time.After(3 * time.Second):
		t.Fatal("application was never invoked")
	}

	start := time.Now()
	type result struct {
		ev  *event.Event
		err error
	}
	done := make(chan result, 1)
	go func() {
		ev, perr := sess.Playback("ivr/welcome", true, 100*time.Millisecond)
		done <- result{ev, perr}
	}()

	for readLineOrFail(t, br) != "sendmsg\n" {
	}
	for {
		if readLineOrFail(t, br) == "\n" {
			break
		}
	}
	fmt.Fprint(nc, "Content-Type: command/reply\nReply-Text: +OK\n\n")

	select {
	case r := <-done:
		if r.ev != nil {
			t.Fatalf("expected Playback to give up with no event, got %v", r.ev)
		}
		if elapsed := time.Since(start); elapsed > outbound.DefaultResponseTimeout.Time() {
			t.Fatalf("Playback took %v, expected to honor the 100ms override", elapsed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Playback never returned; per-call timeout override was not honored")
	}

	_ = srv.Stop()
}
