/*
Multikast
Multicast group listen/talk tool.
Talker logic.
*/
package main

// Import
import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Core functions
func talkLoop(gc *GroupConn, input io.Reader) error {
	/* Send every input line as one datagram to the group. Returns
	nil at end of input, an error when a send or a read fails. */
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		n, err := gc.WriteTo(scanner.Bytes())
		if err != nil {
			return fmt.Errorf("cannot send UDP message: %w", err)
		}

		if CLI.IsDebug {
			logger.Printf("Sent %d bytes to %v\n", n, gc.group)
		}
	}
	return scanner.Err()
}

func startTalker() {
	/* Main business logic for Talker */

	// Setup connection
	gc, err := NewGroupConn(CLI.Group, CLI.Port, CLI.Iface)
	if err != nil {
		logger.Fatalf("Cannot create multicast socket. Error: %v\n", err)
	}
	defer gc.Close()

	logger.Printf("Ready to send to group %v/%d, reading standard input\n", CLI.Group, CLI.Port)

	// Send lines until end of input
	if err := talkLoop(gc, os.Stdin); err != nil {
		logger.Fatalf("Talker stopped. Error: %v\n", err)
	}
}
