package command

import (
	"github.com/urfave/cli/v2"

	"github.com/Mirebella/fedimint/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the effective configuration (defaults, file, FM_ env, flags)",
				Action: func(c *cli.Context) error {
					e := envFrom(c)
					return e.runLocal("config-show", func() (any, error) {
						return e.cfg, nil
					})
				},
			},
			{
				Name:  "path",
				Usage: "Show the config file path of the working directory",
				Action: func(c *cli.Context) error {
					e := envFrom(c)
					return e.runLocal("config-path", func() (any, error) {
						return map[string]string{"path": config.Path(e.cfg.DataDir)}, nil
					})
				},
			},
		},
	}
}
