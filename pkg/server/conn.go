package server

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shapestone/shape-httpd/internal/fastparser"
	"github.com/shapestone/shape-httpd/pkg/http"
)

// ConnState is the stage a connection worker is in.
type ConnState int32

const (
	StateAccepted      ConnState = iota // accepted, nothing read yet
	StateParsing                        // reading a request
	StateHandling                       // handler running
	StateResponding                     // writing the response
	StateKeepAliveWait                  // waiting for the next request
	StateClosed                         // connection closed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateParsing:
		return "parsing"
	case StateHandling:
		return "handling"
	case StateResponding:
		return "responding"
	case StateKeepAliveWait:
		return "keep-alive-wait"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// conn is one accepted connection and its worker loop.
type conn struct {
	id     uint64
	srv    *Server
	rwc    net.Conn
	remote string
	reader *http.Reader
	log    zerolog.Logger
	served int // completed transactions

	// mu pairs state changes out of the idle states with the read
	// deadline they arm, so nudge never clobbers a ReadTimeout.
	mu    sync.Mutex
	state atomic.Int32
}

func newConn(srv *Server, id uint64, rwc net.Conn) *conn {
	c := &conn{
		id:     id,
		srv:    srv,
		rwc:    rwc,
		remote: rwc.RemoteAddr().String(),
		reader: http.NewReader(rwc, srv.cfg.readerOptions()...),
	}
	c.log = srv.log.With().Uint64("conn", id).Str("remote", c.remote).Logger()
	return c
}

func (c *conn) setState(s ConnState) { c.state.Store(int32(s)) }

func (c *conn) getState() ConnState { return ConnState(c.state.Load()) }

// idle reports whether the worker is blocked waiting for a request to start.
func (c *conn) idle() bool {
	s := c.getState()
	return s == StateAccepted || s == StateKeepAliveWait
}

// nudge wakes an idle worker so it notices shutdown.
func (c *conn) nudge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idle() {
		c.rwc.SetReadDeadline(time.Now())
	}
}

// enter moves to state s and arms the read deadline for d in one step.
func (c *conn) enter(s ConnState, d time.Duration) {
	c.mu.Lock()
	c.setState(s)
	c.rwc.SetReadDeadline(deadline(d))
	c.mu.Unlock()
}

func (c *conn) close() {
	c.setState(StateClosed)
	c.rwc.Close()
}

// serve runs transactions until the connection should close.
func (c *conn) serve(ctx context.Context) {
	defer c.close()
	stop := context.AfterFunc(ctx, c.nudge)
	defer stop()

	c.log.Debug().Msg("connection accepted")
	for c.serveOne(ctx) {
	}
	c.log.Debug().Int("served", c.served).Msg("connection closed")
}

// serveOne runs one transaction and reports whether the connection stays
// open for another.
func (c *conn) serveOne(ctx context.Context) bool {
	cfg := &c.srv.cfg

	// Wait for the first byte under the idle (or read) deadline.
	if c.served > 0 {
		c.enter(StateKeepAliveWait, cfg.IdleTimeout)
	} else {
		c.enter(StateAccepted, cfg.ReadTimeout)
	}
	if ctx.Err() != nil {
		return false
	}
	if err := c.reader.Wait(); err != nil {
		if !errors.Is(err, http.ErrEndOfInput) {
			c.log.Debug().Err(err).Msg("idle connection closed")
		}
		return false
	}

	// A nudge that lands before this is overridden; the request then
	// completes and keepAlive sees the cancelled ctx.
	c.enter(StateParsing, cfg.ReadTimeout)
	start := time.Now()
	inStart := c.reader.Count()

	req, err := c.reader.ReadRequest()
	if err != nil {
		c.rejectRequest(err, start, inStart)
		return false
	}
	req.RemoteAddr = c.remote

	c.setState(StateHandling)
	resp := c.handle(req)

	keep := c.keepAlive(ctx, req, resp)
	if !keep {
		resp.SetHeader("Connection", "close")
	} else if !req.IsHTTP11() {
		resp.SetHeader("Connection", "keep-alive")
	}

	c.setState(StateResponding)
	c.rwc.SetWriteDeadline(deadline(cfg.WriteTimeout))
	n, err := resp.WriteTo(c.rwc)
	switch {
	case errors.Is(err, http.ErrInvalidHeader):
		c.log.Error().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("handler produced an invalid response")
		resp = c.errorResponse(req, http.StatusInternalServerError)
		resp.SetHeader("Connection", "close")
		keep = false
		n, err = resp.WriteTo(c.rwc)
	case errors.Is(err, http.ErrResponseFlushed):
		// The handler wrote the response itself; its framing is unknown.
		c.log.Debug().Str("path", req.Path).Msg("response flushed by handler")
		n, err = int64(resp.Size()), nil
		keep = false
	}
	c.served++

	c.srv.logAccess(AccessRecord{
		ID:         uuid.New(),
		Conn:       c.id,
		RemoteAddr: c.remote,
		Method:     req.Method,
		Path:       req.Path,
		Version:    req.Version,
		Status:     resp.StatusCode(),
		Duration:   time.Since(start),
		BytesIn:    c.reader.Count() - inStart,
		BytesOut:   n,
		UserAgent:  req.UserAgent(),
		Referer:    req.Referer(),
	})

	if err != nil {
		c.log.Debug().Err(errors.Wrap(err, "write response")).Msg("transport error")
		return false
	}
	return keep
}

// handle runs the handler, replacing the response with a 500 if it panics.
func (c *conn) handle(req *http.Request) (resp *http.Response) {
	resp = http.NewResponse()
	if req.Method == http.MethodHead {
		resp.SuppressBody()
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("method", req.Method).
				Str("path", req.Path).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")
			resp = c.errorResponse(req, http.StatusInternalServerError)
		}
	}()
	c.srv.handler.Serve(req, resp)
	return resp
}

// errorResponse returns a fresh error response for req.
func (c *conn) errorResponse(req *http.Request, code int) *http.Response {
	resp := http.NewResponse()
	resp.Error(code, "")
	if req.Method == http.MethodHead {
		resp.SuppressBody()
	}
	return resp
}

// keepAlive decides whether the connection survives this transaction.
func (c *conn) keepAlive(ctx context.Context, req *http.Request, resp *http.Response) bool {
	cfg := &c.srv.cfg
	switch {
	case !cfg.KeepAlive, !req.KeepAlive(), ctx.Err() != nil:
		return false
	case cfg.MaxRequestsPerConn > 0 && c.served+1 >= cfg.MaxRequestsPerConn:
		return false
	}
	for _, v := range resp.Header().Values("Connection") {
		if fastparser.HasToken(v, "close") {
			return false
		}
	}
	return true
}

// rejectRequest answers a request that could not be read, when there is
// anyone to answer.
func (c *conn) rejectRequest(err error, start time.Time, inStart int64) {
	var pe *http.ParseError
	if !errors.As(err, &pe) || pe.Status() == 0 {
		c.log.Debug().Err(err).Msg("read request failed")
		return
	}
	c.log.Debug().Err(err).Int("status", pe.Status()).Msg("bad request")

	resp := http.NewResponse()
	resp.Error(pe.Status(), "")
	resp.SetHeader("Connection", "close")
	c.setState(StateResponding)
	c.rwc.SetWriteDeadline(deadline(c.srv.cfg.WriteTimeout))
	n, werr := resp.WriteTo(c.rwc)
	if werr != nil {
		c.log.Debug().Err(errors.Wrap(werr, "write error response")).Msg("transport error")
	}

	c.srv.logAccess(AccessRecord{
		ID:         uuid.New(),
		Conn:       c.id,
		RemoteAddr: c.remote,
		Status:     pe.Status(),
		Duration:   time.Since(start),
		BytesIn:    c.reader.Count() - inStart,
		BytesOut:   n,
	})
}

// deadline returns the absolute deadline for d, or the zero time (no
// deadline) when d is zero.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
