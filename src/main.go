/*
Multikast
Multicast group listen/talk tool.
Main business logic.
*/
package main

import (
	"github.com/alecthomas/kong"
)

// Function
func main() {
	// Get CLI arguments
	kong.Parse(&CLI)

	// The port comes from the configuration file when one is given
	if CLI.ConfigFile == "" && CLI.Port == 0 {
		logger.Fatalf("No UDP port was provided. Run 'multikast -h' for further details.")
	}

	switch CLI.Mode {
	case ModeListen:
		logger.Println("Starting multicast listener...")
		startListener()

	case ModeTalk:
		if CLI.ConfigFile != "" {
			logger.Fatalf("A configuration file can only be used in listen mode.")
		}
		logger.Println("Starting multicast talker...")
		startTalker()
	}
}
