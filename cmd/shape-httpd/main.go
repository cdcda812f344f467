// Command shape-httpd serves a small echo application over the shape-httpd
// pipeline. Every request is answered with its decoded form as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shapestone/shape-httpd/pkg/http"
	"github.com/shapestone/shape-httpd/pkg/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shape-httpd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := server.DefaultConfig()
	fs := flag.NewFlagSet("shape-httpd", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "request read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "response write timeout")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "keep-alive idle timeout")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown limit")
	fs.IntVar(&cfg.MaxRequestsPerConn, "max-requests", cfg.MaxRequestsPerConn, "requests per connection (0 = unlimited)")
	fs.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", cfg.MaxHeaderBytes, "request header size limit")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "request body size limit")
	fs.BoolVar(&cfg.KeepAlive, "keep-alive", cfg.KeepAlive, "allow persistent connections")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", "", "TLS key file")
	fs.BoolVar(&cfg.ReusePort, "reuse-port", false, "set SO_REUSEPORT on the listener")
	level := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()

	srv, err := server.New(cfg, echoHandler(),
		server.WithLogger(log),
		server.WithAccessLogger(server.NewZerologAccessLogger(log)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe(ctx) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	// Serve sees either the shutdown or the signal first.
	if err := <-served; !errors.Is(err, server.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// echoHandler answers /healthz with "ok" and everything else with the
// request converted to its node form and rendered as JSON.
func echoHandler() server.Handler {
	return server.HandlerFunc(func(req *http.Request, resp *http.Response) {
		if req.Path == "/healthz" {
			resp.SetContentType("text/plain; charset=utf-8")
			resp.WriteString("ok\n")
			return
		}
		data, err := json.MarshalIndent(http.NodeToInterface(http.RequestToNode(req)), "", "  ")
		if err != nil {
			resp.Error(http.StatusInternalServerError, err.Error())
			return
		}
		resp.SetContentType("application/json")
		resp.Write(append(data, '\n'))
	})
}
