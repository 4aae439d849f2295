//go:build windows

/*
Multikast
Multicast group listen/talk tool.
Socket options, windows.
*/
package main

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// Functions
func reuseAddr(network, address string, c syscall.RawConn) error {
	/* Control callback for net.ListenConfig, runs between socket
	creation and bind. */
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
