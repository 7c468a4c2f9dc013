package command

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Mirebella/fedimint/internal/cli/config"
	"github.com/Mirebella/fedimint/internal/cli/output"
	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/core/service"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/infra/buildinfo"
	"github.com/Mirebella/fedimint/internal/infra/shutdown"
	"github.com/Mirebella/fedimint/internal/secret"
	"github.com/Mirebella/fedimint/internal/telemetry/logger"
	"github.com/Mirebella/fedimint/internal/telemetry/metric"
)

const envKey = "env"

// shutdownGrace is how long an interrupted command may take to unwind
// before the lock is released forcibly.
const shutdownGrace = 5 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "fedimint-cli",
		Usage:    "Local client for fedimint federations",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Commands: commands(),
		Before:   before,
		After:    after,
		// Exit codes are chosen by main from the error taxonomy.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func commands() []*cli.Command {
	cmds := []*cli.Command{
		InitCommand(),
		JoinCommand(),
		ListFederationsCommand(),
		InfoCommand(),
		DecodeInviteCommand(),
		ExportLogCommand(),
		PrintMnemonicCommand(),
		ForceUnlockCommand(),
		ModuleCommand(),
		ModulesCommand(),
		StoreCommand(),
		ConfigCommand(),
		VersionCommand(),
	}
	return append(cmds, moduleShortcuts()...)
}

// globalFlags returns the global CLI flags. Flags without a value fall
// back to the config file and FM_ environment variables.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Working directory holding the client state",
			EnvVars: []string{"FM_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "federation",
			Aliases: []string{"f"},
			Usage:   "Federation id or unique id prefix (6+ hex characters)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: json, yaml, table",
		},
		&cli.StringFlag{
			Name:    "passphrase",
			Usage:   "Passphrase protecting the secret root",
			EnvVars: []string{"FM_PASSPHRASE"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level on stderr: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format on stderr: text, json",
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for the working directory lock instead of failing",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "Write Prometheus metrics to this file after the command",
		},
	}
}

// flagKeys maps global flags onto configuration keys.
var flagKeys = map[string]string{
	"output":           "output",
	"federation":       "federation",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"wait":             "lock.wait",
	"metrics-textfile": "metrics.textfile",
}

// env is the state of one invocation shared by its command.
type env struct {
	cfg        *config.CLIConfig
	logger     *slog.Logger
	metrics    *metric.Registry
	format     output.Format
	formatter  output.Formatter
	passphrase []byte
	stdout     io.Writer
	tlsConfig  *tls.Config

	metricsWritten bool
}

func before(c *cli.Context) error {
	// 1. Effective configuration
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		if name == "wait" {
			overrides[key] = c.Bool(name)
		} else {
			overrides[key] = c.String(name)
		}
	}
	cfg, err := config.Load(c.String("data-dir"), overrides)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}
	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return err
	}

	// 2. Logger on stderr
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if c.App.ErrWriter != nil {
		logCfg.Output = c.App.ErrWriter
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("logging").WithCause(err)
	}

	stdout := c.App.Writer
	if stdout == nil {
		stdout = os.Stdout
	}
	c.App.Metadata[envKey] = &env{
		cfg:        cfg,
		logger:     log,
		metrics:    metric.NewRegistry(),
		format:     format,
		formatter:  output.NewFormatter(format),
		passphrase: []byte(c.String("passphrase")),
		stdout:     stdout,
		tlsConfig:  tlsConfig,
	}
	log.Debug("configuration loaded", "data_dir", cfg.DataDir, "output", cfg.Output)
	return nil
}

func after(c *cli.Context) error {
	e, ok := c.App.Metadata[envKey].(*env)
	if !ok {
		return nil
	}
	secret.Zero(e.passphrase)
	e.writeMetrics()
	return nil
}

// envFrom returns the invocation environment set up by before.
func envFrom(c *cli.Context) *env {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e
	}
	// Contexts built without running the app get defaults.
	e := &env{
		cfg:       config.Default(),
		logger:    logger.Discard(),
		metrics:   metric.NewRegistry(),
		format:    output.FormatJSON,
		formatter: output.NewFormatter(output.FormatJSON),
		stdout:    os.Stdout,
	}
	if c.App.Writer != nil {
		e.stdout = c.App.Writer
	}
	c.App.Metadata[envKey] = e
	return e
}

func (e *env) apiOptions() federation.APIOptions {
	opts := e.cfg.APIOptions()
	opts.Logger = e.logger
	opts.TLSConfig = e.tlsConfig
	return opts
}

// writeMetrics dumps the metrics textfile once, when configured.
// Failures are logged; they never change the command result.
func (e *env) writeMetrics() {
	if e.cfg.Metrics.Textfile == "" || e.metricsWritten {
		return
	}
	e.metricsWritten = true
	if err := e.metrics.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
		e.logger.Warn("metrics textfile not written", "path", e.cfg.Metrics.Textfile, "error", err)
	}
}

// withWorkdir runs fn with the locked working directory. The lock is
// released on every return path and on SIGINT/SIGTERM.
func (e *env) withWorkdir(c *cli.Context, fn func(ctx context.Context, w *service.Workdir) error) (err error) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	h, ctx := shutdown.NewHandler(parent, shutdownGrace)
	defer func() {
		err = errors.Join(err, h.Shutdown())
	}()

	openCtx := ctx
	if d := e.cfg.LockWaitTimeout(); d > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	w, err := service.OpenWorkdir(openCtx, service.WorkdirOptions{
		Dir:        e.cfg.DataDir,
		Passphrase: e.passphrase,
		Lock:       e.cfg.LockOptions(c.Command.FullName()),
		Federation: federation.Options{API: e.apiOptions(), Logger: e.logger},
		Observer:   e.metrics,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}
	e.metrics.MustRegister(metric.NewStoreCollector(w.Store()))

	// Hooks run in reverse: metrics are gathered while the store is open.
	h.OnShutdown(func(context.Context) error { return w.Close() })
	h.OnShutdown(func(context.Context) error {
		e.writeMetrics()
		return nil
	})

	return fn(ctx, w)
}

// observe records a command that does not go through the dispatcher.
func (e *env) observe(module, operation string, start time.Time, err error) {
	status := domain.OutcomeSuccess
	if err != nil {
		status = string(domain.KindOf(err))
	}
	e.metrics.ObserveCommand(module, operation, status, time.Since(start))
}

// runClient executes a client-level command against the locked working
// directory and writes its Outcome.
func (e *env) runClient(c *cli.Context, operation string, fn func(ctx context.Context, w *service.Workdir) (any, error)) error {
	start := time.Now()
	observed := false

	var result any
	err := e.withWorkdir(c, func(ctx context.Context, w *service.Workdir) error {
		var err error
		result, err = fn(ctx, w)
		e.observe(service.ClientModule, operation, start, err)
		observed = true
		return err
	})
	if !observed {
		e.observe(service.ClientModule, operation, start, err)
	}
	return e.respond(service.NewOutcome(operation, result, err))
}

// runLocal executes a command that needs no working directory lock.
func (e *env) runLocal(operation string, fn func() (any, error)) error {
	start := time.Now()
	result, err := fn()
	e.observe(service.ClientModule, operation, start, err)
	return e.respond(service.NewOutcome(operation, result, err))
}

// respond writes out to stdout. JSON and YAML carry the whole envelope;
// tables show the result or the error alone.
func (e *env) respond(out *service.Outcome) error {
	var data any = out
	if e.format == output.FormatTable {
		data = out.Result
		if out.Error != nil {
			data = out.Error
		}
	}
	if err := e.formatter.Format(e.stdout, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := out.Err(); err != nil {
		return &reportedError{err: err}
	}
	return nil
}

// reportedError is a command error already written to stdout.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported reports whether err was already written to stdout as part of
// an Outcome.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
