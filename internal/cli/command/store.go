package command

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/core/service"
)

// secretPrefix holds key material that dump never prints.
const secretPrefix = "secret/"

// StoreCommand returns the store subcommand group.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "State Store maintenance",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show State Store sizes",
				Action: storeStats,
			},
			{
				Name:   "gc",
				Usage:  "Reclaim value log space",
				Action: storeGC,
			},
			{
				Name:  "dump",
				Usage: "List stored keys in order",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Only keys starting with this prefix (e.g. federation/, oplog/)",
					},
					&cli.BoolFlag{
						Name:  "values",
						Usage: "Include values (secret material is never shown)",
					},
				},
				Action: storeDump,
			},
			{
				Name:  "backup",
				Usage: "Write a full backup of the State Store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Backup file to create",
						Required: true,
					},
				},
				Action: storeBackup,
			},
		},
	}
}

func storeStats(c *cli.Context) error {
	e := envFrom(c)
	return e.runClient(c, "store-stats", func(ctx context.Context, w *service.Workdir) (any, error) {
		return w.Store().Stats(ctx)
	})
}

func storeGC(c *cli.Context) error {
	e := envFrom(c)
	return e.runClient(c, "store-gc", func(ctx context.Context, w *service.Workdir) (any, error) {
		rewritten, err := w.Store().GC(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"rewritten_files": rewritten}, nil
	})
}

type dumpEntry struct {
	Key   string `json:"key"`
	Size  int    `json:"size"`
	Value any    `json:"value,omitempty"`
}

func storeDump(c *cli.Context) error {
	e := envFrom(c)
	prefix := c.String("prefix")
	withValues := c.Bool("values")
	return e.runClient(c, "store-dump", func(ctx context.Context, w *service.Workdir) (any, error) {
		entries := []dumpEntry{}
		err := w.Store().Scan(ctx, []byte(prefix), func(key, value []byte) bool {
			entry := dumpEntry{Key: string(key), Size: len(value)}
			if withValues && !strings.HasPrefix(entry.Key, secretPrefix) {
				entry.Value = dumpValue(value)
			}
			entries = append(entries, entry)
			return true
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	})
}

// dumpValue renders JSON values as-is and anything else as hex.
func dumpValue(value []byte) any {
	if json.Valid(value) {
		return json.RawMessage(append([]byte(nil), value...))
	}
	return hex.EncodeToString(value)
}

func storeBackup(c *cli.Context) error {
	e := envFrom(c)
	path := c.String("out")
	return e.runClient(c, "store-backup", func(ctx context.Context, w *service.Workdir) (any, error) {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, domain.ErrIO.WithDetails(path).WithCause(err)
		}
		version, err := w.Store().Backup(ctx, f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = domain.ErrIO.WithDetails(path).WithCause(cerr)
		}
		if err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("backup to %s: %w", path, err)
		}
		return map[string]any{"path": path, "version": version}, nil
	})
}
