package inbound_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nabbar/eslswitch/inbound"
)

// fakeFreeswitch accepts one connection and hands it, with a buffered
// reader, to script, which plays the switch's side of the handshake so
// the dialer is exercised against a real socket.
func fakeFreeswitch(t *testing.T, ln net.Listener, script func(net.Conn, *bufio.Reader)) {
	t.Helper()

	nc, err := ln.Accept()
	if err != nil {
		return
	}
	defer nc.Close()

	br := bufio.NewReader(nc)
	script(nc, br)
}

func readCommand(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	// discard the blank line terminator
	_, _ = br.ReadString('\n')
	return line, nil
}

func TestDialAuthenticatesSuccessfully(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go fakeFreeswitch(t, ln, func(nc net.Conn, br *bufio.Reader) {
		fmt.Fprint(nc, "Content-Type: auth/request\n\n")

		cmd, err := readCommand(br)
		if err != nil {
			return
		}
		if cmd != "auth secret\n" {
			fmt.Fprint(nc, "Content-Type: command/reply\nReply-Text: -ERR invalid\n\n")
			return
		}

		fmt.Fprint(nc, "Content-Type: command/reply\nReply-Text: +OK accepted\n\n")
	})

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	esl, err := inbound.Dial(ctx, inbound.Config{Host: host, Port: port, Password: "secret"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer esl.Close()

	if !esl.Connected() {
		t.Fatalf("expected Connected() to be true after successful auth")
	}
}

func TestDialRejectsInvalidPassword(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go fakeFreeswitch(t, ln, func(nc net.Conn, br *bufio.Reader) {
		fmt.Fprint(nc, "Content-Type: auth/request\n\n")
		_, _ = readCommand(br)
		fmt.Fprint(nc, "Content-Type: command/reply\nReply-Text: -ERR invalid\n\n")
	})

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = inbound.Dial(ctx, inbound.Config{Host: host, Port: port, Password: "wrong"})
	if err == nil {
		t.Fatalf("expected an error for an invalid password")
	}
}

func TestDialValidatesConfig(t *testing.T) {
	_, err := inbound.Dial(context.Background(), inbound.Config{})
	if err == nil {
		t.Fatalf("expected validation error for empty config")
	}
}
