//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package server

import (
	"syscall"

	"github.com/pkg/errors"
)

func setReusePort(rawConn syscall.RawConn) error {
	return errors.New("SO_REUSEPORT is not supported on this platform")
}
