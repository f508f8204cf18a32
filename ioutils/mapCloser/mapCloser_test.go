package mapCloser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nabbar/eslswitch/ioutils/mapCloser"
)

type fakeCloser struct {
	err    error
	closed chan struct{}
}

func newFakeCloser(err error) *fakeCloser {
	return &fakeCloser{err: err, closed: make(chan struct{})}
}

func (f *fakeCloser) Close() error {
	close(f.closed)
	return f.err
}

func TestCloseClosesEveryRegisteredCloser(t *testing.T) {
	c := mapCloser.New(context.Background())

	a := newFakeCloser(nil)
	b := newFakeCloser(nil)
	c.Add(a, b)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-a.closed:
	default:
		t.Fatal("first closer was never closed")
	}
	select {
	case <-b.closed:
	default:
		t.Fatal("second closer was never closed")
	}
}

func TestCloseAggregatesErrors(t *testing.T) {
	c := mapCloser.New(context.Background())
	c.Add(newFakeCloser(errors.New("boom")))

	if err := c.Close(); err == nil {
		t.Fatal("expected an aggregated error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := mapCloser.New(context.Background())
	c.Add(newFakeCloser(nil))

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestAddAfterCloseIsNoOp(t *testing.T) {
	c := mapCloser.New(context.Background())
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fc := newFakeCloser(nil)
	c.Add(fc)

	select {
	case <-fc.closed:
		t.Fatal("closer added after Close should never be closed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContextCancellationTriggersClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := mapCloser.New(ctx)

	fc := newFakeCloser(nil)
	c.Add(fc)

	cancel()

	select {
	case <-fc.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("context cancellation never triggered auto-close")
	}
}
