package main

import (
	"os"

	"mxbridge/cmd/mxbridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
