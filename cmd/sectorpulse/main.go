package main

import (
	"os"

	"github.com/jwlim/sectorpulse/cmd/sectorpulse/commands"
)

// main is the entry point for the sectorpulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
