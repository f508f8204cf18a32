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
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/semaphore"

	liberr "github.com/nabbar/eslswitch/errors"
	"github.com/nabbar/eslswitch/logger"
)

type server struct {
	cfg ServerConfig
	app Application
	log logger.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	ln       net.Listener
	boundPrt atomic.Int64
	stopping atomic.Bool
}

func newServer(cfg ServerConfig, app Application) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, liberr.InvalidArgument("invalid outbound server config", err)
	}

	if app == nil {
		return nil, liberr.InvalidArgument("an Application is required to control calls")
	}

	return &server{
		cfg: cfg,
		app: app,
		log: logger.New(cfg.LogFunc),
		sem: semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}, nil
}

// reuseAddrControl sets SO_REUSEADDR on the listening socket, matching the
// original server's bind behavior, so a restarted server can rebind a
// recently-closed port without waiting out TIME_WAIT.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}

	return sockErr
}

func (s *server) Listen() error {
	lc := net.ListenConfig{Control: reuseAddrControl}

	var lastErr error

	for _, port := range s.cfg.Ports {
		ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf("%s:%d", s.cfg.Address, port))
		if err != nil {
			s.log.Warn("failed to bind outbound server port, trying next", logger.NewFields().
				Add("port", port).
				Add("error", err.Error()))
			lastErr = err
			continue
		}

		s.ln = ln
		if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
			s.boundPrt.Store(int64(tcpAddr.Port))
		} else {
			s.boundPrt.Store(int64(port))
		}
		break
	}

	if s.ln == nil {
		return liberr.NotConnected("could not bind outbound server to any configured port", lastErr)
	}

	s.log.Info("outbound server listening", logger.NewFields().Add("port", s.BoundPort()))

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				break
			}
			return liberr.NotConnected("accept failed", err)
		}

		go s.acceptCall(nc)
	}

	s.wg.Wait()
	s.log.Info("outbound server stopped")

	return nil
}

func (s *server) BoundPort() int {
	return int(s.boundPrt.Load())
}

func (s *server) acceptCall(nc net.Conn) {
	sess := newSession(nc, sessionOptions{
		ResponseTimeout: s.cfg.ResponseTimeout.Time(),
		QueueSize:       s.cfg.QueueSize,
		LogFunc:         s.cfg.LogFunc,
	})

	if !s.sem.TryAcquire(1) {
		s.log.Info("rejecting call, outbound server is at full capacity", logger.NewFields().
			Add("max_connections", s.cfg.MaxConnections))
		_, _ = sess.Connect()
		_ = sess.Close()
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer func() { _ = sess.Close() }()

	if _, err := sess.Connect(); err != nil {
		s.log.Warn("outbound session failed to connect", logger.NewFields().Add("error", err.Error()))
		return
	}

	s.app.Run(sess)
}

func (s *server) Stop() error {
	s.stopping.Store(true)

	if s.ln == nil {
		return nil
	}

	return s.ln.Close()
}
