// Package pdu switches outlets on telnet-managed power distribution units.
// The unit has no reply framing to speak of: every command is echoed back
// inside a banner dump, and the session is opened fresh for each command
// and torn down with a logout. Outlet state is scraped from the status
// screen.
package pdu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/session"
	"github.com/benchhw/benchlink/internal/transport"
)

const outletStatusHeading = "Outlet Status"

var (
	ErrBadOutlet = errors.New("outlet number out of range")
	ErrBadStatus = errors.New("status screen has no outlet table")
)

// Spec is the unit's telnet dialect. A bare carriage return wakes the
// prompt, each transaction reconnects, and the trailing logout lets the
// unit drop the connection so the read resolves at end of stream.
func Spec() protocol.Spec {
	return protocol.Spec{
		Kind:              protocol.KindAdapter,
		Name:              "pdu-telnet",
		RequestPrefix:     "\r",
		RequestTerminator: "\r",
		SessionClose:      "logout\r",
		EchoVerify:        true,
		ConnectPerCall:    true,
		MaxReplySize:      4096,
	}
}

type Driver struct {
	logger     *slog.Logger
	engine     *session.Engine
	outlets    int
	cycleDelay time.Duration
}

type Option func(*Driver)

func WithOutletCount(n int) Option {
	return func(d *Driver) {
		d.outlets = n
	}
}

// WithCycleDelay overrides how long Cycle keeps an outlet off.
func WithCycleDelay(delay time.Duration) Option {
	return func(d *Driver) {
		d.cycleDelay = delay
	}
}

func New(logger *slog.Logger, tr transport.Transport, opts ...Option) *Driver {
	log := logger.With("component", "pdu")
	d := &Driver{
		logger:     log,
		engine:     session.New(log, tr, Spec(), capability.Record{}),
		outlets:    5,
		cycleDelay: CycleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// On energizes one outlet. Outlets are numbered from 1.
func (d *Driver) On(ctx context.Context, outlet int) error {
	return d.Set(ctx, outlet, true)
}

// Off de-energizes one outlet.
func (d *Driver) Off(ctx context.Context, outlet int) error {
	return d.Set(ctx, outlet, false)
}

func (d *Driver) Set(ctx context.Context, outlet int, on bool) error {
	if outlet < 1 || outlet > d.outlets {
		return fmt.Errorf("%w: %d of %d", ErrBadOutlet, outlet, d.outlets)
	}

	level := 0
	if on {
		level = 1
	}
	op := protocol.Operation{
		Kind:     protocol.OpRaw,
		Mnemonic: fmt.Sprintf("pset %d %d", outlet, level),
	}
	if _, err := d.engine.Execute(ctx, op); err != nil {
		return fmt.Errorf("set outlet %d: %w", outlet, err)
	}
	d.logger.Info("outlet switched", "outlet", outlet, "on", on)

	return nil
}

// Get reports whether one outlet is energized.
func (d *Driver) Get(ctx context.Context, outlet int) (bool, error) {
	if outlet < 1 || outlet > d.outlets {
		return false, fmt.Errorf("%w: %d of %d", ErrBadOutlet, outlet, d.outlets)
	}

	states, err := d.States(ctx)
	if err != nil {
		return false, err
	}
	if outlet > len(states) {
		return false, fmt.Errorf("%w: outlet %d missing from table", ErrBadStatus, outlet)
	}

	return states[outlet-1], nil
}

// States scrapes the outlet table from the unit's status screen. The
// screen carries a heading line such as
//
//	Outlet Status(1-On, 0-Off): 1 0 1 1 0
//
// and the digits after the colon are the outlet levels in order.
func (d *Driver) States(ctx context.Context) ([]bool, error) {
	rep, err := d.engine.Query(ctx, "sysshow")
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}

	return parseOutletTable(rep.Render("\n"))
}

func parseOutletTable(screen string) ([]bool, error) {
	_, rest, found := strings.Cut(screen, outletStatusHeading)
	if !found {
		return nil, fmt.Errorf("%w: heading %q not found", ErrBadStatus, outletStatusHeading)
	}
	_, rest, found = strings.Cut(rest, ":")
	if !found {
		return nil, fmt.Errorf("%w: heading has no value column", ErrBadStatus)
	}
	if line, _, ok := strings.Cut(rest, "\n"); ok {
		rest = line
	}

	var states []bool
	for _, tok := range strings.Fields(rest) {
		level, err := strconv.Atoi(tok)
		if err != nil {
			break
		}
		states = append(states, level != 0)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no outlet levels after heading", ErrBadStatus)
	}

	return states, nil
}

// CycleDelay is the default time Cycle keeps an outlet off before
// re-energizing.
const CycleDelay = 3 * time.Second

// Cycle power-cycles one outlet, waiting for the unit's relays and the
// downstream device's supply to settle in between.
func (d *Driver) Cycle(ctx context.Context, outlet int) error {
	if err := d.Off(ctx, outlet); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.cycleDelay):
	}

	return d.On(ctx, outlet)
}
