package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/module"
)

// minPrefixLen is the shortest federation id prefix accepted for selection.
const minPrefixLen = 6

// Registry is what the dispatcher needs from the Federation Client Registry.
type Registry interface {
	List(ctx context.Context) ([]domain.FederationID, error)
	GetOrBuild(ctx context.Context, id domain.FederationID) (*federation.Session, error)
}

// Observer is notified of every executed command.
type Observer interface {
	ObserveCommand(module, operation, outcome string, elapsed time.Duration)
}

// Command selects one module operation.
type Command struct {
	// Federation is a federation id or unique id prefix. Empty selects the
	// only registered federation.
	Federation string
	Module     string
	Operation  string
	Args       module.Args
}

// ErrorInfo is the error part of an Outcome.
type ErrorInfo struct {
	Kind    domain.ErrorKind `json:"kind"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message"`
}

// Outcome is the uniform result of one command: a result or an error.
type Outcome struct {
	Federation string     `json:"federation,omitempty"`
	Module     string     `json:"module"`
	Operation  string     `json:"operation"`
	Result     any        `json:"result,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`

	err error
}

// Err returns the error of a failed outcome.
func (o *Outcome) Err() error {
	return o.err
}

// ExitCode returns the process exit code for the outcome.
func (o *Outcome) ExitCode() int {
	return domain.ExitCode(o.err)
}

// ClientModule is the Outcome module of commands handled by the client
// itself rather than a module sub-client.
const ClientModule = federation.ClientModule

// NewOutcome builds the outcome of a command that does not go through the
// dispatcher, such as join or info.
func NewOutcome(operation string, result any, err error) *Outcome {
	out := &Outcome{Module: ClientModule, Operation: operation}
	if err != nil {
		return out.fail(err)
	}
	out.Result = result
	return out
}

func (o *Outcome) fail(err error) *Outcome {
	o.err = err
	o.Error = &ErrorInfo{
		Kind:    domain.KindOf(err),
		Code:    domain.GetErrorCode(err),
		Message: err.Error(),
	}
	return o
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher maps commands onto module operations of federation sessions.
// It never retries; every Execute yields exactly one Outcome.
type Dispatcher struct {
	registry Registry
	oplog    *OperationLog
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry Registry, oplog *OperationLog, opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		oplog:    oplog,
		observer: opts.Observer,
		logger:   opts.Logger.With("component", "dispatcher"),
	}
}

// Execute runs cmd.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) *Outcome {
	start := time.Now()
	out := d.execute(ctx, cmd)

	status := domain.OutcomeSuccess
	if out.err != nil {
		status = string(domain.KindOf(out.err))
		d.logger.Debug("command failed",
			"federation", out.Federation,
			"module", cmd.Module,
			"operation", cmd.Operation,
			"error", out.err)
	}
	if d.observer != nil {
		d.observer.ObserveCommand(cmd.Module, cmd.Operation, status, time.Since(start))
	}
	return out
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) *Outcome {
	out := &Outcome{Module: cmd.Module, Operation: cmd.Operation}

	// 1. Resolve federation
	id, err := d.ResolveFederation(ctx, cmd.Federation)
	if err != nil {
		return out.fail(err)
	}
	out.Federation = id.String()

	// 2. Get or build the session
	session, err := d.registry.GetOrBuild(ctx, id)
	if err != nil {
		return out.fail(err)
	}

	// 3. Look up module and operation
	client, err := session.Module(cmd.Module)
	if err != nil {
		return out.fail(err)
	}
	op, err := module.Lookup(client, cmd.Operation)
	if err != nil {
		return out.fail(err)
	}

	// 4. Invoke, serialized per session
	result, err := session.Invoke(ctx, cmd.Module, cmd.Operation, cmd.Args)
	if err != nil {
		return out.fail(operationError(id, cmd, err))
	}
	out.Result = result

	// 5. Record confirmed mutations
	if op.Mutating && d.oplog != nil {
		entry := &domain.OperationLogEntry{
			FederationID: id,
			Module:       cmd.Module,
			Operation:    cmd.Operation,
			Outcome:      domain.OutcomeSuccess,
			Result:       result,
		}
		// The federation already confirmed the mutation and module state is
		// committed; failing here would invite a repeat.
		if err := d.oplog.Append(ctx, entry); err != nil {
			d.logger.Error("operation confirmed but not logged",
				"federation", id.Short(),
				"module", cmd.Module,
				"operation", cmd.Operation,
				"error", err)
		}
	}
	return out
}

// operationError adds federation, module and operation context to err.
// Taxonomy errors keep their kind; anything else becomes a module error.
func operationError(id domain.FederationID, cmd Command, err error) error {
	where := fmt.Sprintf("federation %s, %s %s", id.Short(), cmd.Module, cmd.Operation)

	var de *domain.DomainError
	if errors.As(err, &de) {
		details := where
		if de.Details != "" {
			details += ": " + de.Details
		}
		return de.WithDetails(details)
	}
	return domain.ErrModule.WithDetails(where).WithCause(err)
}

// ResolveFederation maps a federation selector onto a registered id.
//
// An empty selector picks the only registered federation. Otherwise the
// selector is a full id or an id prefix of at least six hex characters
// matching exactly one registered federation.
func (d *Dispatcher) ResolveFederation(ctx context.Context, selector string) (domain.FederationID, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if len(selector) == 2*domain.FederationIDSize {
		return domain.ParseFederationID(selector)
	}

	ids, err := d.registry.List(ctx)
	if err != nil {
		return domain.FederationID{}, err
	}

	if selector == "" {
		switch len(ids) {
		case 0:
			return domain.FederationID{}, domain.ErrNoFederation
		case 1:
			return ids[0], nil
		default:
			return domain.FederationID{}, domain.ErrAmbiguousFederation.WithDetailsf(
				"%d federations registered (%s); pass --federation", len(ids), shortIDs(ids))
		}
	}

	if len(selector) < minPrefixLen {
		return domain.FederationID{}, domain.ErrInvalidArgument.WithDetailsf(
			"federation selector %q: use at least %d hex characters", selector, minPrefixLen)
	}
	var matches []domain.FederationID
	for _, id := range ids {
		if strings.HasPrefix(id.String(), selector) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return domain.FederationID{}, domain.ErrUnknownFederation.WithDetails(selector)
	case 1:
		return matches[0], nil
	default:
		return domain.FederationID{}, domain.ErrAmbiguousFederation.WithDetailsf(
			"prefix %q matches %s", selector, shortIDs(matches))
	}
}

func shortIDs(ids []domain.FederationID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.Short()
	}
	return strings.Join(parts, ", ")
}
