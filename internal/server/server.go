// Package server owns the listening socket and the accept loop. Accepted
// connections are wrapped as tasks and handed to the bounded queue; a
// saturated queue stalls the acceptor, which throttles admission instead
// of letting connections pile up.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
)

// acceptPollInterval bounds how long a shutdown waits on a blocked Accept.
const acceptPollInterval = 250 * time.Millisecond

// Options configure a Server.
type Options struct {
	Addr    string
	Queue   *pool.Queue
	Pool    *pool.Pool
	Metrics *metrics.Aggregator
	Logger  *slog.Logger
}

// Server binds the core listening socket and runs the accept loop.
type Server struct {
	addr    string
	queue   *pool.Queue
	pool    *pool.Pool
	metrics *metrics.Aggregator
	log     *slog.Logger

	ln       *net.TCPListener
	stop     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
	started  bool
}

// New builds a Server. Queue, Pool, and Metrics are required.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		addr:     opts.Addr,
		queue:    opts.Queue,
		pool:     opts.Pool,
		metrics:  opts.Metrics,
		log:      log,
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start binds the listener, starts the worker pool, and launches the
// accept loop. A bind failure is fatal at startup and returned here.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("bind %s: unexpected listener type %T", s.addr, ln)
	}
	s.ln = tcpLn
	s.started = true

	s.pool.Start()
	go s.acceptLoop()

	s.log.Info("server listening", "addr", s.ln.Addr().String(), "workers", s.pool.Size(), "queue_capacity", s.queue.Capacity())
	return nil
}

// Addr reports the bound listen address; nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// acceptLoop accepts connections until the stop signal. The accept
// deadline is polled so a shutdown is observed promptly without closing
// the listener out from under a blocked Accept.
func (s *Server) acceptLoop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		_ = s.ln.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := s.ln.Accept()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			select {
			case <-s.stop:
				return
			default:
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		task := pool.Task{Conn: conn, AcceptedAt: time.Now()}
		if err := s.queue.Enqueue(task); err != nil {
			// Shutdown raced the accept; drop the connection cleanly.
			conn.Close()
			return
		}
		s.metrics.ObserveQueueDepth(s.queue.Depth())
	}
}

// Shutdown stops the server in strict order: stop accepting, drain the
// worker pool within timeout, then close the listening socket last. The
// pool's degraded straggler report, if any, is returned unchanged.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if !s.started {
		return nil
	}

	<-s.loopDone
	err := s.pool.Shutdown(timeout)

	if cerr := s.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}

	if err != nil {
		s.log.Warn("shutdown degraded", "error", err)
	} else {
		s.log.Info("server stopped")
	}
	return err
}
