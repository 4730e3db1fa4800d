package main

import (
	"os"

	"github.com/predictdesk/engine/cmd/predictdesk/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
