package main

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/undo-memfs/cmd/umfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
