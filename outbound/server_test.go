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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/eslswitch/outbound"
)

// dialFakeCall connects to the server's bound port and acts as a minimal
// FreeSWITCH peer: it answers exactly one "connect" command with a
// command/reply carrying a fake session_data block.
func dialFakeCall(addr string) net.Conn {
	nc, err := net.Dial("tcp", addr)
	Expect(err).ToNot(HaveOccurred())

	go func() {
		br := bufio.NewReader(nc)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if line == "connect\n" {
				_, _ = br.ReadString('\n')
				fmt.Fprint(nc, "Content-Type: command/reply\nvariable_uuid: abc-123\n"+
					"Caller-Caller-ID-Number: 5551234\n\n")
			}
		}
	}()

	return nc
}

type blockingApp struct {
	entered chan outbound.Session
	release chan struct{}
}

func (a *blockingApp) Run(s outbound.Session) {
	a.entered <- s
	<-a.release
}

var _ = Describe("Server", func() {
	It("rejects a call beyond max_connections without stalling the accept loop", func() {
		app := &blockingApp{entered: make(chan outbound.Session, 2), release: make(chan struct{})}

		srv, err := outbound.NewServer(outbound.ServerConfig{
			Address:        "127.0.0.1",
			Ports:          []int{0},
			MaxConnections: 1,
		}, app)
		Expect(err).ToNot(HaveOccurred())

		done := make(chan error, 1)
		go func() { done <- srv.Listen() }()

		Eventually(func() int { return srv.BoundPort() }, "2s").ShouldNot(Equal(0))

		addr := fmt.Sprintf("127.0.0.1:%d", srv.BoundPort())

		first := dialFakeCall(addr)
		defer first.Close()

		var firstSession outbound.Session
		Eventually(app.entered, "2s").Should(Receive(&firstSession))
		Expect(firstSession.UUID()).To(Equal("abc-123"))

		second := dialFakeCall(addr)
		defer second.Close()

		// The rejected call should see its socket closed shortly after
		// the fake "connect" reply, without a second Run ever starting.
		Eventually(func() error {
			buf := make([]byte, 1)
			second.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, err := second.Read(buf)
			return err
		}, "3s").Should(HaveOccurred())

		Consistently(app.entered, "200ms").ShouldNot(Receive())

		close(app.release)
		Expect(srv.Stop()).To(Succeed())
		Eventually(done, "2s").Should(Receive(BeNil()))
	})
})
