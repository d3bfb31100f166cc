package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/moolen/routebench/cmd/routebench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, commands.ErrInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
