package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/printmerge/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()

	// Commands report their own failures; anything else came from cobra
	// or flag parsing before a command ran.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
