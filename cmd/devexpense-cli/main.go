package main

import (
	"errors"
	"fmt"
	"os"

	"devexpense/internal/cli"
)

func main() {
	root := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, cli.ErrCalculationRejected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
