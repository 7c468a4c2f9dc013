package main

import (
	"fmt"
	"os"

	"github.com/Mirebella/fedimint/internal/cli/command"
	"github.com/Mirebella/fedimint/internal/core/domain"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		if !command.Reported(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(domain.ExitCode(err))
	}
}
