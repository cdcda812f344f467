package server

import (
	"context"
	"crypto/tls"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// Listen opens the TCP listener described by cfg, wrapped in TLS when a
// certificate is configured.
func Listen(cfg Config) (net.Listener, error) {
	var options []func(*net.Listener) error
	if cfg.TLSCertFile != "" {
		options = append(options, applyTLS(cfg.TLSCertFile, cfg.TLSKeyFile))
	}
	return newListener("tcp", cfg.Addr, cfg.ReusePort, options...)
}

func newListener(transport, addr string, reusePort bool, options ...func(*net.Listener) error) (net.Listener, error) {
	var lc net.ListenConfig
	if reusePort {
		lc.Control = applyReusePort
	}

	listener, err := lc.Listen(context.Background(), transport, addr)
	if err != nil {
		return nil, err
	}

	for _, option := range options {
		if err := option(&listener); err != nil {
			listener.Close()
			return nil, err // further options won't be executed
		}
	}
	return listener, nil
}

func applyTLS(certificate, key string) func(*net.Listener) error {
	return func(l *net.Listener) error {
		cert, err := tls.LoadX509KeyPair(certificate, key)
		if err != nil {
			return errors.Wrap(err, "server: load TLS key pair")
		}

		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"http/1.1", "http/1.0"},
			MinVersion:   tls.VersionTLS12,
		}
		*l = tls.NewListener(*l, tlsConfig)
		return nil
	}
}

func applyReusePort(network, address string, rawConn syscall.RawConn) error {
	return errors.Wrapf(setReusePort(rawConn), "server: reuse port on %s", address)
}
