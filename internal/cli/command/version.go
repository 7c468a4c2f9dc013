package command

import (
	"github.com/urfave/cli/v2"

	"github.com/Mirebella/fedimint/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			e := envFrom(c)
			return e.runLocal("version", func() (any, error) {
				return buildinfo.Get(), nil
			})
		},
	}
}
