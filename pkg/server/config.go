package server

import (
	"time"

	"github.com/pkg/errors"

	"github.com/shapestone/shape-httpd/pkg/http"
)

// Config holds the listener, limit and timeout settings of a Server.
type Config struct {
	Addr string // listen address, e.g. ":8080"

	// MaxConns bounds the number of connections served at once. When all
	// slots are taken the accept loop stops accepting until one frees up.
	MaxConns int

	// A zero read, write or idle timeout is disabled.
	ReadTimeout  time.Duration // reading one request, first byte to last
	WriteTimeout time.Duration // writing one response
	IdleTimeout  time.Duration // waiting for the next keep-alive request

	// ShutdownTimeout bounds how long Shutdown waits for workers before
	// force-closing them. It must be positive.
	ShutdownTimeout time.Duration

	MaxRequestsPerConn int   // 0 means unlimited
	MaxHeaderBytes     int   // 0 means http.DefaultMaxHeaderBytes
	MaxBodyBytes       int64 // 0 means http.DefaultMaxBodyBytes

	KeepAlive bool // allow persistent connections

	TLSCertFile string
	TLSKeyFile  string
	ReusePort   bool // set SO_REUSEADDR and SO_REUSEPORT on the listening socket
}

// DefaultConfig returns the settings used by the demo command.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		MaxConns:           256,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		MaxRequestsPerConn: 0,
		MaxHeaderBytes:     http.DefaultMaxHeaderBytes,
		MaxBodyBytes:       http.DefaultMaxBodyBytes,
		KeepAlive:          true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MaxConns <= 0:
		return errors.Errorf("server: MaxConns must be positive, got %d", c.MaxConns)
	case c.ReadTimeout < 0, c.WriteTimeout < 0, c.IdleTimeout < 0:
		return errors.New("server: timeouts must not be negative")
	case c.ShutdownTimeout <= 0:
		return errors.Errorf("server: ShutdownTimeout must be positive, got %v", c.ShutdownTimeout)
	case c.MaxRequestsPerConn < 0:
		return errors.Errorf("server: MaxRequestsPerConn must not be negative, got %d", c.MaxRequestsPerConn)
	case c.MaxHeaderBytes < 0:
		return errors.Errorf("server: MaxHeaderBytes must not be negative, got %d", c.MaxHeaderBytes)
	case c.MaxBodyBytes < 0:
		return errors.Errorf("server: MaxBodyBytes must not be negative, got %d", c.MaxBodyBytes)
	case (c.TLSCertFile == "") != (c.TLSKeyFile == ""):
		return errors.New("server: TLSCertFile and TLSKeyFile must be set together")
	}
	return nil
}

// readerOptions maps the limits onto request reader options. Zero limits
// keep the reader defaults.
func (c *Config) readerOptions() []http.ReaderOption {
	var opts []http.ReaderOption
	if c.MaxHeaderBytes > 0 {
		opts = append(opts, http.WithMaxHeaderBytes(c.MaxHeaderBytes))
	}
	if c.MaxBodyBytes > 0 {
		opts = append(opts, http.WithMaxBodyBytes(c.MaxBodyBytes))
	}
	return opts
}
