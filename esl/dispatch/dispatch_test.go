package dispatch_test

import (
	"context"
	"time"

	"github.com/nabbar/eslswitch/esl/dispatch"
	"github.com/nabbar/eslswitch/esl/event"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mustParse(raw string) *event.Event {
	e, err := event.Parse(raw)
	Expect(err).ToNot(HaveOccurred())
	return e
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		d      *dispatch.Dispatcher
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		d = dispatch.New(16, nil)
		go d.Run(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("routes CUSTOM events by Event-Subclass over Event-Name", func() {
		got := make(chan *event.Event, 1)
		d.Register("conference::maintenance", func(ev *event.Event) { got <- ev })
		d.Register("CUSTOM", func(ev *event.Event) { got <- mustParse("Event-Name: WRONG\n") })

		d.Enqueue(mustParse("Event-Name: CUSTOM\nEvent-Subclass: conference::maintenance\n"))

		Eventually(got).Should(Receive(WithTransform(func(e *event.Event) string {
			return e.Subclass()
		}, Equal("conference::maintenance"))))
	})

	It("routes text/disconnect-notice to DISCONNECT regardless of Event-Name", func() {
		got := make(chan *event.Event, 1)
		d.Register(dispatch.NameDisconnect, func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Content-Type: text/disconnect-notice\nEvent-Name: CHANNEL_HANGUP\n"))

		Eventually(got).Should(Receive())
	})

	It("falls back to log for log/data frames with no dedicated handler", func() {
		got := make(chan *event.Event, 1)
		d.Register(dispatch.NameLog, func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Content-Type: log/data\n"))

		Eventually(got).Should(Receive())
	})

	It("falls back to the wildcard handler when nothing else matches", func() {
		got := make(chan *event.Event, 1)
		d.Register(dispatch.NameWildcard, func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(got).Should(Receive())
	})

	It("drops unmatched events without blocking later dispatch", func() {
		got := make(chan *event.Event, 1)
		d.Register("HEARTBEAT", func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Event-Name: UNHANDLED\n"))
		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(got).Should(Receive())
	})

	It("preserves registration order within a handler name", func() {
		order := make(chan int, 2)
		d.Register("HEARTBEAT", func(ev *event.Event) { order <- 1 })
		d.Register("HEARTBEAT", func(ev *event.Event) { order <- 2 })

		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(order).Should(Receive(Equal(1)))
		Eventually(order).Should(Receive(Equal(2)))
	})

	It("isolates a panicking handler from the rest of the dispatcher", func() {
		got := make(chan *event.Event, 1)
		d.Register("HEARTBEAT", func(ev *event.Event) { panic("boom") })
		d.Register("HEARTBEAT", func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(got, time.Second).Should(Receive())
	})

	It("runs the before hook even when no handler is registered for the event", func() {
		got := make(chan *event.Event, 1)
		d.SetBeforeHandle(func(ev *event.Event) { got <- ev })

		d.Enqueue(mustParse("Event-Name: UNHANDLED\n"))

		Eventually(got).Should(Receive())
	})

	It("runs before/after hooks around every dispatched event", func() {
		var calls []string
		d.SetBeforeHandle(func(ev *event.Event) { calls = append(calls, "before") })
		d.SetAfterHandle(func(ev *event.Event) { calls = append(calls, "after") })
		done := make(chan struct{})
		d.Register("HEARTBEAT", func(ev *event.Event) { calls = append(calls, "handle"); close(done) })

		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(done).Should(BeClosed())
		Expect(calls).To(Equal([]string{"before", "handle", "after"}))
	})

	It("stops routing to a handler once it has been deregistered", func() {
		first := make(chan *event.Event, 1)
		second := make(chan *event.Event, 1)
		h := func(ev *event.Event) { first <- ev }
		d.Register("HEARTBEAT", h)
		d.Register("HEARTBEAT", func(ev *event.Event) { second <- ev })

		Expect(d.Deregister("HEARTBEAT", h)).To(Succeed())
		d.Enqueue(mustParse("Event-Name: HEARTBEAT\n"))

		Eventually(second).Should(Receive())
		Consistently(first).ShouldNot(Receive())
	})

	It("fails with an invalid-argument error when the name has no handlers", func() {
		err := d.Deregister("HEARTBEAT", func(ev *event.Event) {})
		Expect(err).To(HaveOccurred())
	})

	It("fails with an invalid-argument error when no registered handler matches", func() {
		d.Register("HEARTBEAT", func(ev *event.Event) {})
		err := d.Deregister("HEARTBEAT", func(ev *event.Event) {})
		Expect(err).To(HaveOccurred())
	})
})
