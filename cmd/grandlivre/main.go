package main

import (
	"fmt"
	"os"

	"github.com/cleared-dev/grandlivre/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(1)
	}
}
