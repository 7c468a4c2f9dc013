package command

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/core/service"
	"github.com/Mirebella/fedimint/internal/module"
)

const moduleArgsUsage = "OPERATION [--federation ID] [KEY=VALUE...]"

// ModuleCommand returns the generic module command, which addresses a
// module instance by its configured name.
func ModuleCommand() *cli.Command {
	return &cli.Command{
		Name:            "module",
		Usage:           "Run an operation of a module instance by name",
		ArgsUsage:       "NAME " + moduleArgsUsage,
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) == 0 {
				e := envFrom(c)
				return e.runLocal("module", func() (any, error) {
					return nil, domain.ErrMissingArgument.WithDetails("module name")
				})
			}
			return runModule(c, args[0], args[1:])
		},
	}
}

// moduleShortcuts returns one command per module kind, for federations
// whose instance names equal their kinds.
func moduleShortcuts() []*cli.Command {
	catalog := module.Catalog()
	cmds := make([]*cli.Command, 0, len(catalog))
	for _, kind := range module.Kinds() {
		names := make([]string, len(catalog[kind]))
		for i, op := range catalog[kind] {
			names[i] = op.Name
		}
		cmds = append(cmds, &cli.Command{
			Name:            kind,
			Usage:           "Module " + kind + ": " + strings.Join(names, ", "),
			ArgsUsage:       moduleArgsUsage,
			Category:        "modules",
			SkipFlagParsing: true,
			Action: func(c *cli.Context) error {
				return runModule(c, kind, c.Args().Slice())
			},
		})
	}
	return cmds
}

func runModule(c *cli.Context, name string, args []string) error {
	e := envFrom(c)
	start := time.Now()

	operation := ""
	if len(args) > 0 {
		operation = args[0]
	}
	cmd, err := parseModuleArgs(name, args, e.cfg.Federation)
	if err != nil {
		e.observe(name, operation, start, err)
		return e.respond(failedOutcome(name, operation, err))
	}

	var out *service.Outcome
	err = e.withWorkdir(c, func(ctx context.Context, w *service.Workdir) error {
		out = w.Dispatcher().Execute(ctx, cmd)
		return out.Err()
	})
	switch {
	case out == nil:
		// The working directory could not be opened.
		e.observe(name, operation, start, err)
		out = failedOutcome(name, operation, err)
	case err != nil && out.Err() == nil:
		out = failedOutcome(name, operation, err)
	}
	return e.respond(out)
}

// parseModuleArgs builds a dispatcher command from
// OPERATION [--federation ID] [KEY=VALUE...]. The federation flag may
// appear anywhere after the operation and overrides selector.
func parseModuleArgs(name string, args []string, selector string) (service.Command, error) {
	cmd := service.Command{Module: name, Federation: selector}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return cmd, domain.ErrMissingArgument.WithDetailsf("operation of module %s", name)
	}
	cmd.Operation = args[0]

	var pairs []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--federation" || arg == "-f":
			if i+1 >= len(rest) {
				return cmd, domain.ErrMissingArgument.WithDetails("value of --federation")
			}
			i++
			cmd.Federation = rest[i]
		case strings.HasPrefix(arg, "--federation="):
			cmd.Federation = strings.TrimPrefix(arg, "--federation=")
		case strings.HasPrefix(arg, "-"):
			return cmd, domain.ErrInvalidArgument.WithDetailsf("unknown flag %q", arg)
		default:
			pairs = append(pairs, arg)
		}
	}

	parsed, err := module.ParseArgs(pairs)
	if err != nil {
		return cmd, err
	}
	cmd.Args = parsed
	return cmd, nil
}

func failedOutcome(name, operation string, err error) *service.Outcome {
	out := service.NewOutcome(operation, nil, err)
	out.Module = name
	return out
}

// ModulesCommand returns the modules command.
func ModulesCommand() *cli.Command {
	return &cli.Command{
		Name:   "modules",
		Usage:  "List module kinds and their operations",
		Action: modulesAction,
	}
}

type moduleOperation struct {
	Module    string `json:"module"`
	Operation string `json:"operation"`
	Mutating  bool   `json:"mutating"`
	Args      string `json:"args,omitempty"`
	Summary   string `json:"summary"`
}

func modulesAction(c *cli.Context) error {
	e := envFrom(c)
	return e.runLocal("modules", func() (any, error) {
		catalog := module.Catalog()
		kinds := make([]string, 0, len(catalog))
		for kind := range catalog {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		var out []moduleOperation
		for _, kind := range kinds {
			for _, op := range catalog[kind] {
				out = append(out, moduleOperation{
					Module:    kind,
					Operation: op.Name,
					Mutating:  op.Mutating,
					Args:      strings.Join(op.Args, " "),
					Summary:   op.Summary,
				})
			}
		}
		return out, nil
	})
}
