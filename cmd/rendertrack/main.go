package main

import (
	"os"

	"github.com/vidforge/rendertrack/cmd/rendertrack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
