package main

import (
	"os"

	"github.com/tomaslejdung/gomeet/cmd/gomeet/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
