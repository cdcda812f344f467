// Package server runs the connection side of the HTTP pipeline: a bounded
// accept loop and one synchronous worker goroutine per connection that
// reads requests, calls the Handler and writes responses.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrShutdownTimeout is returned by Shutdown when workers were still
	// running at the deadline and had to be force-closed.
	ErrShutdownTimeout = errors.New("server: shutdown timed out")
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for connection and server events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAccessLogger sets the receiver of access records.
func WithAccessLogger(a AccessLogger) Option {
	return func(s *Server) { s.access = a }
}

// Server accepts connections and serves HTTP/1.x requests on them.
type Server struct {
	cfg     Config
	handler Handler
	log     zerolog.Logger
	access  AccessLogger
	slots   *semaphore.Weighted
	nextID  atomic.Uint64

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[*conn]struct{}
	closing  bool
	workers  sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// New returns a Server for cfg that dispatches requests to h.
func New(cfg Config, h Handler, opts ...Option) (*Server, error) {
	if h == nil {
		return nil, errors.New("server: nil handler")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		handler: h,
		log:     zerolog.Nop(),
		slots:   semaphore.NewWeighted(int64(cfg.MaxConns)),
		conns:   make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the server configuration.
func (s *Server) Config() Config { return s.cfg }

// ListenAndServe listens on cfg.Addr and serves until ctx is done or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := Listen(s.cfg)
	if err != nil {
		return errors.Wrapf(err, "server: listen on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is
// called. A connection slot is taken before each Accept, so at capacity
// new clients wait in the listen backlog. Serve closes ln on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	s.log.Info().Str("addr", ln.Addr().String()).Int("max_conns", s.cfg.MaxConns).Msg("serving")

	var backoff time.Duration
	for {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return s.stopped(ctx)
		}
		rwc, err := ln.Accept()
		if err != nil {
			s.slots.Release(1)
			if ctx.Err() != nil || s.isClosing() {
				return s.stopped(ctx)
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
				time.Sleep(backoff)
				continue
			}
			return errors.Wrap(err, "server: accept")
		}
		backoff = 0

		c := newConn(s, s.nextID.Add(1), rwc)
		if !s.track(c) {
			rwc.Close()
			s.slots.Release(1)
			return s.stopped(ctx)
		}
		go func() {
			defer s.workers.Done()
			defer s.slots.Release(1)
			defer s.untrack(c)
			c.serve(ctx)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// stopped picks the error Serve returns once the accept loop ends.
func (s *Server) stopped(ctx context.Context) error {
	if s.isClosing() {
		return ErrServerClosed
	}
	return ctx.Err()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// track registers c as active. It fails once shutdown has begun so that
// no worker starts after Shutdown began waiting.
func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.workers.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// ActiveConns returns the number of connections being served.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, wakes idle connections and waits for the
// workers to finish their current transaction. If they have not finished
// within cfg.ShutdownTimeout, or before ctx is done, the remaining
// connections are closed and ErrShutdownTimeout is returned. Later calls
// return the result of the first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		ln, cancel := s.listener, s.cancel
		s.mu.Unlock()

		// Cancelling the serve context nudges idle connections.
		if cancel != nil {
			cancel()
		}
		if ln != nil {
			ln.Close()
		}

		done := make(chan struct{})
		go func() {
			s.workers.Wait()
			close(done)
		}()

		timer := time.NewTimer(s.cfg.ShutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
			s.log.Info().Msg("shutdown complete")
			return
		case <-timer.C:
		case <-ctx.Done():
		}

		s.mu.Lock()
		n := len(s.conns)
		for c := range s.conns {
			c.rwc.Close()
		}
		s.mu.Unlock()
		s.log.Warn().Int("conns", n).Msg("shutdown timed out, connections closed")
		s.shutdownErr = ErrShutdownTimeout
	})
	return s.shutdownErr
}

func (s *Server) logAccess(rec AccessRecord) {
	if s.access != nil {
		s.access.LogAccess(rec)
	}
}
