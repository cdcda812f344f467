package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shapestone/shape-httpd/pkg/http"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MaxConns = 4
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.IdleTimeout = 2 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// startServer serves h on a loopback listener. The returned function shuts
// the server down and returns Serve's result.
func startServer(t *testing.T, cfg Config, h Handler, opts ...Option) (*Server, string, func() error) {
	t.Helper()
	srv, err := New(cfg, h, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background(), ln) }()

	var once sync.Once
	var serveErr error
	stop := func() error {
		once.Do(func() {
			srv.Shutdown(context.Background())
			select {
			case serveErr = <-served:
			case <-time.After(5 * time.Second):
				t.Error("Serve did not return after Shutdown")
			}
		})
		return serveErr
	}
	t.Cleanup(func() { stop() })
	return srv, ln.Addr().String(), stop
}

type testResponse struct {
	status  int
	headers http.Headers
	body    string
}

// readResponse reads one Content-Length framed response.
func readResponse(t *testing.T, br *bufio.Reader) testResponse {
	t.Helper()
	resp, err := parseResponse(br)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func parseResponse(br *bufio.Reader) (testResponse, error) {
	var resp testResponse
	line, err := br.ReadString('\n')
	if err != nil {
		return resp, err
	}
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 3)
	if len(parts) < 2 {
		return resp, fmt.Errorf("bad status line %q", line)
	}
	resp.status, _ = strconv.Atoi(parts[1])
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return resp, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, _ := strings.Cut(line, ": ")
		resp.headers.Add(k, v)
	}
	if n := resp.headers.ContentLength(); n > 0 {
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return resp, err
		}
		resp.body = string(buf)
	}
	return resp, nil
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	c.SetDeadline(time.Now().Add(5 * time.Second))
	return c, bufio.NewReader(c)
}

func expectClosed(t *testing.T, br *bufio.Reader) {
	t.Helper()
	if b, err := br.ReadByte(); err != io.EOF {
		t.Errorf("ReadByte() = %q, %v, want EOF", b, err)
	}
}

var echoPath = HandlerFunc(func(req *http.Request, resp *http.Response) {
	resp.SetContentType("text/plain")
	resp.WriteString(req.Method + " " + req.Path)
})

func TestServer_KeepAlive(t *testing.T) {
	_, addr, _ := startServer(t, testConfig(), echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "GET /one HTTP/1.1\r\nHost: x\r\n\r\n")
	r1 := readResponse(t, br)
	io.WriteString(c, "POST /two HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	r2 := readResponse(t, br)

	if r1.status != 200 || r1.body != "GET /one" {
		t.Errorf("first = %d %q", r1.status, r1.body)
	}
	if r2.status != 200 || r2.body != "POST /two" {
		t.Errorf("second = %d %q", r2.status, r2.body)
	}
	if r1.headers.Has("Connection") {
		t.Errorf("Connection = %q on keep-alive response", r1.headers.Get("Connection"))
	}
}

func TestServer_ConnectionClose(t *testing.T) {
	_, addr, _ := startServer(t, testConfig(), echoPath)

	tests := []struct {
		name    string
		request string
	}{
		{"client close", "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"},
		{"http/1.0", "GET / HTTP/1.0\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, br := dial(t, addr)
			io.WriteString(c, tt.request)
			resp := readResponse(t, br)
			if got := resp.headers.Get("Connection"); got != "close" {
				t.Errorf("Connection = %q, want close", got)
			}
			expectClosed(t, br)
		})
	}
}

func TestServer_HTTP10KeepAlive(t *testing.T) {
	_, addr, _ := startServer(t, testConfig(), echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "GET /a HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	resp := readResponse(t, br)
	if got := resp.headers.Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", got)
	}
	io.WriteString(c, "GET /b HTTP/1.0\r\n\r\n")
	if resp := readResponse(t, br); resp.body != "GET /b" {
		t.Errorf("body = %q", resp.body)
	}
	expectClosed(t, br)
}

func TestServer_HandlerClosesConnection(t *testing.T) {
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		resp.SetHeader("Connection", "close")
	})
	_, addr, _ := startServer(t, testConfig(), h)
	c, br := dial(t, addr)

	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	readResponse(t, br)
	expectClosed(t, br)
}

func TestServer_PanicRecovered(t *testing.T) {
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		if req.Path == "/boom" {
			resp.SetHeader("X-Partial", "yes")
			resp.WriteString("partial")
			panic("boom")
		}
		resp.WriteString("fine")
	})
	_, addr, _ := startServer(t, testConfig(), h)
	c, br := dial(t, addr)

	io.WriteString(c, "GET /boom HTTP/1.1\r\n\r\n")
	r1 := readResponse(t, br)
	if r1.status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", r1.status)
	}
	if r1.headers.Has("X-Partial") || strings.Contains(r1.body, "partial") {
		t.Errorf("500 response kept handler state: %+v", r1)
	}

	io.WriteString(c, "GET /ok HTTP/1.1\r\n\r\n")
	if r2 := readResponse(t, br); r2.status != 200 || r2.body != "fine" {
		t.Errorf("after panic = %d %q", r2.status, r2.body)
	}
}

func TestServer_BadRequests(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 4
	_, addr, _ := startServer(t, cfg, echoPath)

	tests := []struct {
		name    string
		request string
		status  int
	}{
		{"malformed", "GARBAGE\r\n\r\n", 400},
		{"version", "GET / HTTP/2.0\r\n\r\n", 505},
		{"body too large", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789", 413},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, br := dial(t, addr)
			io.WriteString(c, tt.request)
			resp := readResponse(t, br)
			if resp.status != tt.status {
				t.Errorf("status = %d, want %d", resp.status, tt.status)
			}
			if got := resp.headers.Get("Connection"); got != "close" {
				t.Errorf("Connection = %q, want close", got)
			}
			expectClosed(t, br)
		})
	}
}

func TestServer_ReadTimeoutPartialRequest(t *testing.T) {
	cfg := testConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	_, addr, _ := startServer(t, cfg, echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "GET / HTTP/1.1\r\nHost: slow")
	resp := readResponse(t, br)
	if resp.status != http.StatusRequestTimeout {
		t.Errorf("status = %d, want 408", resp.status)
	}
	expectClosed(t, br)
}

func TestServer_IdleTimeoutSilent(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	_, addr, _ := startServer(t, cfg, echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	readResponse(t, br)
	expectClosed(t, br)
}

func TestServer_HeadSuppressesBody(t *testing.T) {
	_, addr, _ := startServer(t, testConfig(), echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "HEAD /page HTTP/1.1\r\n\r\n")
	line, _ := br.ReadString('\n')
	if !strings.HasPrefix(line, "HTTP/1.1 200 OK") {
		t.Fatalf("status line = %q", line)
	}
	var sawLength bool
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		if line == "\r\n" {
			break
		}
		if line == "Content-Length: 10\r\n" {
			sawLength = true
		}
	}
	if !sawLength {
		t.Error("HEAD response missing Content-Length: 10")
	}

	// The next bytes belong to the next response.
	io.WriteString(c, "GET /x HTTP/1.1\r\n\r\n")
	if resp := readResponse(t, br); resp.body != "GET /x" {
		t.Errorf("body = %q", resp.body)
	}
}

func TestServer_MaxRequestsPerConn(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestsPerConn = 2
	_, addr, _ := startServer(t, cfg, echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "GET /1 HTTP/1.1\r\n\r\n")
	if r := readResponse(t, br); r.headers.Has("Connection") {
		t.Errorf("first Connection = %q", r.headers.Get("Connection"))
	}
	io.WriteString(c, "GET /2 HTTP/1.1\r\n\r\n")
	if r := readResponse(t, br); r.headers.Get("Connection") != "close" {
		t.Errorf("second Connection = %q, want close", r.headers.Get("Connection"))
	}
	expectClosed(t, br)
}

func TestServer_Capacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConns = 1
	release := make(chan struct{})
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		if req.Path == "/block" {
			<-release
		}
		resp.WriteString(req.Path)
	})
	srv, addr, _ := startServer(t, cfg, h)

	c1, br1 := dial(t, addr)
	io.WriteString(c1, "GET /block HTTP/1.1\r\nConnection: close\r\n\r\n")
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	c2, br2 := dial(t, addr)
	io.WriteString(c2, "GET /second HTTP/1.1\r\n\r\n")

	got := make(chan testResponse, 1)
	go func() {
		r, _ := parseResponse(br2)
		got <- r
	}()
	select {
	case r := <-got:
		t.Fatalf("second client served at capacity: %+v", r)
	case <-time.After(150 * time.Millisecond):
	}
	if n := srv.ActiveConns(); n != 1 {
		t.Errorf("ActiveConns() = %d, want 1", n)
	}

	close(release)
	if r := readResponse(t, br1); r.body != "/block" {
		t.Errorf("first body = %q", r.body)
	}
	select {
	case r := <-got:
		if r.body != "/second" {
			t.Errorf("second body = %q", r.body)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("second client not served after slot freed")
	}
}

func TestServer_ShutdownIdempotent(t *testing.T) {
	srv, addr, stop := startServer(t, testConfig(), echoPath)
	c, br := dial(t, addr)

	// Leave an idle keep-alive connection open.
	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	readResponse(t, br)

	start := time.Now()
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("Shutdown() took %v with only idle connections", d)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if err := stop(); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve() = %v, want ErrServerClosed", err)
	}
	expectClosed(t, br)
	if n := srv.ActiveConns(); n != 0 {
		t.Errorf("ActiveConns() = %d after Shutdown", n)
	}

	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	if err := srv.Serve(context.Background(), ln); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve() after Shutdown = %v, want ErrServerClosed", err)
	}
}

func TestServer_ShutdownTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownTimeout = 100 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		close(started)
		<-release
	})
	srv, addr, _ := startServer(t, cfg, h)
	c, _ := dial(t, addr)
	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	<-started

	if err := srv.Shutdown(context.Background()); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Shutdown() = %v, want ErrShutdownTimeout", err)
	}
	if err := srv.Shutdown(context.Background()); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("second Shutdown() = %v, want ErrShutdownTimeout", err)
	}
}

func TestServer_ContextCancel(t *testing.T) {
	srv, err := New(testConfig(), echoPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-served:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_AccessRecords(t *testing.T) {
	var mu sync.Mutex
	var recs []AccessRecord
	logger := AccessLoggerFunc(func(rec AccessRecord) {
		mu.Lock()
		recs = append(recs, rec)
		mu.Unlock()
	})
	_, addr, stop := startServer(t, testConfig(), echoPath, WithAccessLogger(logger), WithLogger(zerolog.Nop()))
	c, br := dial(t, addr)

	req1 := "GET /a?x=1 HTTP/1.1\r\nUser-Agent: tester\r\nReferer: http://r/\r\n\r\n"
	io.WriteString(c, req1)
	readResponse(t, br)
	io.WriteString(c, "BROKEN\r\n\r\n")
	readResponse(t, br)
	stop()

	mu.Lock()
	defer mu.Unlock()
	if len(recs) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(recs))
	}
	r := recs[0]
	if r.Method != "GET" || r.Path != "/a" || r.Status != 200 || r.Version != "HTTP/1.1" {
		t.Errorf("record = %+v", r)
	}
	if r.UserAgent != "tester" || r.Referer != "http://r/" {
		t.Errorf("UserAgent = %q, Referer = %q", r.UserAgent, r.Referer)
	}
	if r.BytesIn != int64(len(req1)) {
		t.Errorf("BytesIn = %d, want %d", r.BytesIn, len(req1))
	}
	if r.BytesOut == 0 || r.RemoteAddr == "" || r.Conn == 0 {
		t.Errorf("record = %+v", r)
	}
	if recs[1].Status != 400 || recs[1].Method != "" {
		t.Errorf("error record = %+v", recs[1])
	}
	if recs[0].ID == recs[1].ID {
		t.Error("records share an ID")
	}
}

func TestConn_Pipe(t *testing.T) {
	srv, err := New(testConfig(), echoPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client, server := net.Pipe()
	defer client.Close()

	c := newConn(srv, 1, server)
	done := make(chan struct{})
	go func() {
		c.serve(context.Background())
		close(done)
	}()

	client.SetDeadline(time.Now().Add(5 * time.Second))
	br := bufio.NewReader(client)
	go io.WriteString(client, "GET /pipe HTTP/1.1\r\nConnection: close\r\n\r\n")
	if resp := readResponse(t, br); resp.body != "GET /pipe" {
		t.Errorf("body = %q", resp.body)
	}
	<-done
	if s := c.getState(); s != StateClosed {
		t.Errorf("state = %v, want closed", s)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_ZeroBodyLimitUsesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 0
	_, addr, _ := startServer(t, cfg, echoPath)
	c, br := dial(t, addr)

	io.WriteString(c, "POST /upload HTTP/1.1\r\nContent-Length: 2\r\n\r\nhi")
	if resp := readResponse(t, br); resp.status != 200 || resp.body != "POST /upload" {
		t.Errorf("response = %d %q, want 200", resp.status, resp.body)
	}
}

func TestServer_InvalidResponseHeader(t *testing.T) {
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		resp.SetHeader("X-Note", "ok\r\nX-Injected: 1")
		resp.WriteString("never sent")
	})
	_, addr, _ := startServer(t, testConfig(), h)
	c, br := dial(t, addr)

	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	resp := readResponse(t, br)
	if resp.status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.status)
	}
	if resp.headers.Has("X-Injected") || resp.headers.Has("X-Note") {
		t.Errorf("handler headers leaked: %+v", resp.headers)
	}
	if got := resp.headers.Get("Connection"); got != "close" {
		t.Errorf("Connection = %q, want close", got)
	}
	expectClosed(t, br)
}

func TestServer_HandlerFlushedResponse(t *testing.T) {
	var mu sync.Mutex
	var recs []AccessRecord
	logger := AccessLoggerFunc(func(rec AccessRecord) {
		mu.Lock()
		recs = append(recs, rec)
		mu.Unlock()
	})
	h := HandlerFunc(func(req *http.Request, resp *http.Response) {
		resp.WriteString("elsewhere")
		resp.WriteTo(io.Discard)
	})
	_, addr, stop := startServer(t, testConfig(), h, WithAccessLogger(logger))
	c, br := dial(t, addr)

	io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	expectClosed(t, br)
	stop()

	mu.Lock()
	defer mu.Unlock()
	if len(recs) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(recs))
	}
	if recs[0].BytesOut == 0 || recs[0].Status != 200 {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestConn_NudgeOnlyWakesIdle(t *testing.T) {
	srv, err := New(testConfig(), echoPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		state ConnState
		woken bool
	}{
		{StateAccepted, true},
		{StateKeepAliveWait, true},
		{StateParsing, false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			c := newConn(srv, 1, server)
			defer c.close()

			c.enter(tt.state, 2*time.Second)
			c.nudge()
			go func() {
				time.Sleep(50 * time.Millisecond)
				client.Write([]byte("x"))
			}()

			_, err := server.Read(make([]byte, 1))
			var ne net.Error
			timedOut := errors.As(err, &ne) && ne.Timeout()
			if timedOut != tt.woken {
				t.Errorf("Read() error = %v, want timeout %v", err, tt.woken)
			}
		})
	}
}
