package main

import (
	"os"

	"github.com/cleanab-dev/cleanab/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
