package main

import (
	"fmt"
	"os"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/cli"
)

// main - is the entry point of the application. It hands the command line to the cli package.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
