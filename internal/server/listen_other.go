//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package server

import (
	"errors"
	"net"
)

func listenConfig(reusePort bool) (net.ListenConfig, error) {
	if reusePort {
		return net.ListenConfig{}, errors.New("reuse_port is not supported on this platform")
	}
	return net.ListenConfig{}, nil
}
