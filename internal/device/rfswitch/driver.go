// Package rfswitch drives RC and USB series switch matrices. The dialect is
// selected at open time from the transport kind and the device's self
// identification; command syntax follows the discovered switch, pole and
// throw counts.
package rfswitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/session"
	"github.com/benchhw/benchlink/internal/transport"
)

// Mini-Circuits USB series identifiers.
const (
	DefaultVendorID  = 0x20ce
	DefaultProductID = 0x0022
)

var (
	ErrNotOpen       = errors.New("rfswitch is not open")
	ErrCommandFailed = errors.New("rfswitch rejected the command")
	ErrBadReply      = errors.New("rfswitch reply carried no state value")
)

// Driver is a synchronous RF switch client. It is not safe for concurrent
// use; callers needing overlap must serialize externally.
type Driver struct {
	logger   *slog.Logger
	tr       transport.Transport
	override capability.Family
	timeout  time.Duration

	engine *session.Engine
	rec    capability.Record
}

type Option func(*Driver)

// WithDialectOverride pins the firmware family instead of autodetecting it
// from the model string. Required for very old USB firmware that only
// speaks the legacy binary dialect.
func WithDialectOverride(family capability.Family) Option {
	return func(d *Driver) {
		d.override = family
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func New(logger *slog.Logger, tr transport.Transport, opts ...Option) *Driver {
	d := &Driver{
		logger:  logger.With("component", "rfswitch"),
		tr:      tr,
		timeout: session.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Open connects the transport, identifies the device and selects the final
// dialect. A device that cannot be classified is a fatal error: command
// syntax depends on the discovered capabilities.
func (d *Driver) Open(ctx context.Context) error {
	boot, err := protocol.Bootstrap(d.tr.Kind())
	if d.override != "" {
		// An overridden family also drives identification; legacy firmware
		// does not understand the SCPI bootstrap queries.
		boot, err = protocol.Select(d.tr.Kind(), d.override)
	}
	if err != nil {
		return err
	}
	if !boot.ConnectPerCall {
		if err := d.tr.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	bootEngine := session.New(d.logger, d.tr, boot, capability.Record{}, session.WithTimeout(d.timeout))
	rec, err := capability.Identify(ctx, func(ctx context.Context, mnemonic string) (string, error) {
		return identString(ctx, bootEngine, mnemonic)
	})
	if err != nil {
		_ = d.tr.Close()

		return fmt.Errorf("identify device: %w", err)
	}

	family := rec.Family
	if d.override != "" {
		family = d.override
	}
	spec, err := protocol.Select(d.tr.Kind(), family)
	if err != nil {
		_ = d.tr.Close()

		return err
	}

	d.engine = session.New(d.logger, d.tr, spec, rec, session.WithTimeout(d.timeout))
	d.rec = rec
	d.logger.Info("device identified",
		"model", rec.Model,
		"serial", rec.Serial,
		"dialect", spec.Name,
		"switches", rec.Switch.Switches,
		"states", rec.Switch.States)

	return nil
}

func (d *Driver) Close() error {
	d.engine = nil

	return d.tr.Close()
}

func (d *Driver) Model() string {
	return d.rec.Model
}

func (d *Driver) Serial() string {
	return d.rec.Serial
}

func (d *Driver) Capabilities() capability.Record {
	return d.rec
}

// Set switches the given channel to the requested state.
func (d *Driver) Set(ctx context.Context, ch protocol.Channel, state int) error {
	if d.engine == nil {
		return ErrNotOpen
	}

	rep, err := d.engine.Execute(ctx, protocol.Operation{
		Kind:    protocol.OpSet,
		Channel: ch,
		State:   state,
		Arity:   1,
	})
	if err != nil {
		return err
	}
	if !rep.Success {
		return fmt.Errorf("%w: set state %d", ErrCommandFailed, state)
	}
	d.logger.Debug("switch set", "state", state)

	return nil
}

// Get reads the current state of the given channel.
func (d *Driver) Get(ctx context.Context, ch protocol.Channel) (int, error) {
	if d.engine == nil {
		return 0, ErrNotOpen
	}

	rep, err := d.engine.Execute(ctx, protocol.Operation{
		Kind:    protocol.OpGet,
		Channel: ch,
		Arity:   1,
	})
	if err != nil {
		return 0, err
	}
	state, ok := rep.LastInt()
	if !ok {
		return 0, fmt.Errorf("%w: %+v", ErrBadReply, rep.Fields)
	}

	return int(state), nil
}

// Query exposes raw mnemonic queries (e.g. firmware-specific extensions).
func (d *Driver) Query(ctx context.Context, mnemonic string) (protocol.Reply, error) {
	if d.engine == nil {
		return protocol.Reply{}, ErrNotOpen
	}

	return d.engine.Query(ctx, mnemonic)
}

// Command sends a raw command string with optional integer arguments.
func (d *Driver) Command(ctx context.Context, cmd string, args ...int) (bool, error) {
	if d.engine == nil {
		return false, ErrNotOpen
	}

	return d.engine.Command(ctx, cmd, args...)
}

// identString extracts the payload value of an identification query. SCPI
// style devices echo the mnemonic as a leading field ("MN=RC-2SP6T-A12");
// legacy replies carry the bare value.
func identString(ctx context.Context, eng *session.Engine, mnemonic string) (string, error) {
	rep, err := eng.Query(ctx, mnemonic)
	if err != nil {
		return "", err
	}
	if len(rep.Fields) == 0 {
		return "", fmt.Errorf("empty reply to %q", mnemonic)
	}

	return rep.Fields[len(rep.Fields)-1].String(), nil
}
