package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/syndelabs/synde/internal/cli"
)

func main() {
	err := cli.Execute()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)

	// Terminal workflow states map to specific exit codes so scripts can
	// branch on the outcome.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
