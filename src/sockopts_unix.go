//go:build !windows

/*
Multikast
Multicast group listen/talk tool.
Socket options, unix.
*/
package main

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Functions
func reuseAddr(network, address string, c syscall.RawConn) error {
	/* Control callback for net.ListenConfig, runs between socket
	creation and bind. */
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
