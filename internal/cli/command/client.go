package command

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/core/service"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/lockfile"
	"github.com/Mirebella/fedimint/internal/secret"
)

// maxMnemonicInput bounds a mnemonic read from stdin.
const maxMnemonicInput = 4096

// InitCommand returns the init command.
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create the secret root of a new working directory",
		ArgsUsage: "[MNEMONIC... | -]",
		Description: "Pass the mnemonic words as arguments, \"-\" to read them from stdin,\n" +
			"or --generate for a fresh mnemonic. With --passphrase the secret is\n" +
			"stored encrypted.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "generate",
				Usage: "Generate a new mnemonic and print it once",
			},
			&cli.IntFlag{
				Name:  "words",
				Usage: "Word count of a generated mnemonic",
				Value: 12,
			},
		},
		Action: initAction,
	}
}

type initResult struct {
	Initialized bool   `json:"initialized"`
	Encrypted   bool   `json:"encrypted"`
	Mnemonic    string `json:"mnemonic,omitempty"`
}

func initAction(c *cli.Context) error {
	e := envFrom(c)

	// Reject bad input before the working directory is touched.
	mnemonic, generated, err := mnemonicSource(c)
	if err == nil {
		err = secret.ValidateMnemonic(mnemonic)
	}
	if err == nil {
		err = secret.CheckPassphrase(e.passphrase)
	}
	if err != nil {
		return e.runLocal("init", func() (any, error) { return nil, err })
	}

	return e.runClient(c, "init", func(ctx context.Context, w *service.Workdir) (any, error) {
		if _, err := w.Initialize(ctx, mnemonic); err != nil {
			return nil, err
		}
		res := &initResult{Initialized: true, Encrypted: len(e.passphrase) > 0}
		if generated {
			res.Mnemonic = mnemonic
		}
		e.logger.Info("working directory initialized", "dir", w.Dir(), "encrypted", res.Encrypted)
		return res, nil
	})
}

// mnemonicSource returns the mnemonic to initialize with and whether it
// was generated here.
func mnemonicSource(c *cli.Context) (string, bool, error) {
	args := c.Args()
	if c.Bool("generate") {
		if args.Present() {
			return "", false, domain.ErrInvalidArgument.WithDetails("--generate takes no mnemonic")
		}
		m, err := secret.GenerateMnemonic(c.Int("words"))
		return m, true, err
	}

	switch {
	case !args.Present():
		return "", false, domain.ErrMissingArgument.WithDetails("mnemonic (or --generate)")
	case args.Len() == 1 && args.First() == "-":
		raw, err := io.ReadAll(io.LimitReader(c.App.Reader, maxMnemonicInput))
		if err != nil {
			return "", false, domain.ErrInvalidArgument.WithDetails("read mnemonic from stdin").WithCause(err)
		}
		defer secret.Zero(raw)
		return secret.NormalizeMnemonic(string(raw)), false, nil
	default:
		return secret.NormalizeMnemonic(strings.Join(args.Slice(), " ")), false, nil
	}
}

// JoinCommand returns the join command.
func JoinCommand() *cli.Command {
	return &cli.Command{
		Name:      "join",
		Usage:     "Join a federation from an invite code",
		ArgsUsage: "INVITE_CODE",
		Action:    joinAction,
	}
}

func joinAction(c *cli.Context) error {
	e := envFrom(c)
	code := c.Args().First()
	if code == "" || c.Args().Len() > 1 {
		return e.runLocal("join", func() (any, error) {
			return nil, domain.ErrMissingArgument.WithDetails("exactly one invite code")
		})
	}

	return e.runClient(c, "join", func(ctx context.Context, w *service.Workdir) (any, error) {
		id, err := w.Registry().Connect(ctx, code)
		if err != nil {
			return nil, err
		}
		rec, err := w.Registry().Record(ctx, id)
		if err != nil {
			return nil, err
		}
		return summarize(id, rec), nil
	})
}

// federationSummary describes one joined federation.
type federationSummary struct {
	FederationID string    `json:"federation_id"`
	Name         string    `json:"name"`
	Network      string    `json:"network"`
	Guardians    int       `json:"guardians"`
	Threshold    int       `json:"threshold"`
	Modules      []string  `json:"modules"`
	JoinedAt     time.Time `json:"joined_at"`
}

func summarize(id domain.FederationID, rec *federation.Record) *federationSummary {
	return &federationSummary{
		FederationID: id.String(),
		Name:         rec.Config.Global.Name,
		Network:      rec.Config.Global.Network,
		Guardians:    rec.Config.PeerCount(),
		Threshold:    rec.Config.Threshold(),
		Modules:      rec.Config.ModuleNames(),
		JoinedAt:     rec.JoinedAt,
	}
}

// ListFederationsCommand returns the list-federations command.
func ListFederationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-federations",
		Aliases: []string{"ls"},
		Usage:   "List joined federations in the order they were joined",
		Action:  listFederationsAction,
	}
}

func listFederationsAction(c *cli.Context) error {
	e := envFrom(c)
	return e.runClient(c, "list-federations", func(ctx context.Context, w *service.Workdir) (any, error) {
		ids, err := w.Registry().List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*federationSummary, 0, len(ids))
		for _, id := range ids {
			rec, err := w.Registry().Record(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, summarize(id, rec))
		}
		return out, nil
	})
}

// InfoCommand returns the info command.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show a federation and probe its guardians",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Probe every joined federation in parallel",
			},
		},
		Action: infoAction,
	}
}

// federationInfo is a summary plus guardian reachability.
type federationInfo struct {
	federationSummary
	Online int                     `json:"online"`
	Peers  []federation.PeerStatus `json:"peers"`
}

func infoAction(c *cli.Context) error {
	e := envFrom(c)
	all := c.Bool("all")
	return e.runClient(c, "info", func(ctx context.Context, w *service.Workdir) (any, error) {
		var ids []domain.FederationID
		if all {
			var err error
			if ids, err = w.Registry().List(ctx); err != nil {
				return nil, err
			}
		} else {
			id, err := w.Dispatcher().ResolveFederation(ctx, e.cfg.Federation)
			if err != nil {
				return nil, err
			}
			ids = []domain.FederationID{id}
		}

		infos, err := e.probe(ctx, w.Registry(), ids)
		if err != nil {
			return nil, err
		}
		if !all {
			return infos[0], nil
		}
		return infos, nil
	})
}

// probe queries the guardians of every federation, at most
// network.max_parallel federations at a time. Each task writes only its
// own slot of the result.
func (e *env) probe(ctx context.Context, registry *federation.Registry, ids []domain.FederationID) ([]*federationInfo, error) {
	infos := make([]*federationInfo, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Network.MaxParallel)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := registry.Record(gctx, id)
			if err != nil {
				return err
			}
			api := federation.NewAPI(rec.Config.Global.Peers, rec.APISecret, e.apiOptions())
			info := &federationInfo{
				federationSummary: *summarize(id, rec),
				Peers:             api.Status(gctx),
			}
			offline := 0
			for _, p := range info.Peers {
				if p.Online {
					info.Online++
				} else {
					offline++
				}
			}
			if offline > 0 {
				e.metrics.GuardianErrors.WithLabelValues(id.Short()).Add(float64(offline))
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// DecodeInviteCommand returns the decode-invite command.
func DecodeInviteCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode-invite",
		Usage:     "Decode an invite code without contacting the federation",
		ArgsUsage: "INVITE_CODE",
		Action: func(c *cli.Context) error {
			e := envFrom(c)
			return e.runLocal("decode-invite", func() (any, error) {
				if c.Args().Len() != 1 {
					return nil, domain.ErrMissingArgument.WithDetails("exactly one invite code")
				}
				return federation.DecodeInvite(c.Args().First())
			})
		},
	}
}

// ExportLogCommand returns the export-log command.
func ExportLogCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-log",
		Usage: "Export the operation log, oldest first",
		Description: "Without --federation every federation's entries are exported,\n" +
			"grouped by federation.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after this many entries (0 for all)",
			},
		},
		Action: exportLogAction,
	}
}

func exportLogAction(c *cli.Context) error {
	e := envFrom(c)
	limit := c.Int("limit")
	return e.runClient(c, "export-log", func(ctx context.Context, w *service.Workdir) (any, error) {
		if limit < 0 {
			return nil, domain.ErrInvalidArgument.WithDetails("--limit must not be negative")
		}
		var filter *domain.FederationID
		if e.cfg.Federation != "" {
			id, err := w.Dispatcher().ResolveFederation(ctx, e.cfg.Federation)
			if err != nil {
				return nil, err
			}
			filter = &id
		}

		entries := []*domain.OperationLogEntry{}
		err := w.OperationLog().Scan(ctx, filter, func(entry *domain.OperationLogEntry) bool {
			entries = append(entries, entry)
			return limit == 0 || len(entries) < limit
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	})
}

// PrintMnemonicCommand returns the print-mnemonic command.
func PrintMnemonicCommand() *cli.Command {
	return &cli.Command{
		Name:  "print-mnemonic",
		Usage: "Reveal the mnemonic of the secret root",
		Action: func(c *cli.Context) error {
			e := envFrom(c)
			return e.runClient(c, "print-mnemonic", func(ctx context.Context, w *service.Workdir) (any, error) {
				root, err := w.Root(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]string{"mnemonic": root.Mnemonic()}, nil
			})
		},
	}
}

// ForceUnlockCommand returns the force-unlock command.
func ForceUnlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "force-unlock",
		Usage: "Remove the working directory lock left by a crashed invocation",
		Description: "Only use this when no other fedimint-cli process is running on the\n" +
			"working directory. Stale locks of dead processes are reclaimed\n" +
			"automatically after lock.stale_after.",
		Action: func(c *cli.Context) error {
			e := envFrom(c)
			return e.runLocal("force-unlock", func() (any, error) {
				owner, err := lockfile.ForceUnlock(e.cfg.DataDir)
				if err != nil {
					return nil, err
				}
				e.logger.Warn("working directory lock removed", "path", lockfile.Path(e.cfg.DataDir))
				return map[string]any{
					"path":           lockfile.Path(e.cfg.DataDir),
					"previous_owner": owner,
				}, nil
			})
		},
	}
}
