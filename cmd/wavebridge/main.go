// Package main is the entry point for the wavebridge daemon.
package main

import (
	"os"

	"github.com/audiolink/wavebridge/cmd/wavebridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
