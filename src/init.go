/*
Multikast
Multicast group listen/talk tool.
Initiation
*/
package main

import (
	"log"
	"os"
)

// Vars
var (
	logger *log.Logger
	CLI    CliArg
)

// Init
func init() {
	/* Initialize app */
	// Logger
	logger = log.New(os.Stderr, "Multikast: ", log.Lmicroseconds|log.Ldate|log.LUTC|log.Lmsgprefix)

}
