// Package fpga talks to register-mapped FPGA boards over serial. The board
// speaks a minimal hexadecimal dialect: "w<addr><data>" writes a register
// and echoes the command back, "r<addr>" echoes the command followed by the
// register contents. Address and data widths are board properties.
package fpga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/session"
	"github.com/benchhw/benchlink/internal/transport"
)

var (
	ErrNotOpen    = errors.New("fpga is not open")
	ErrOutOfRange = errors.New("value exceeds register width")
	ErrBadReply   = errors.New("fpga reply carried no register value")
)

// Config describes the board's register geometry. Boards with slow UART
// firmware need a per-byte write gap so characters are not dropped.
type Config struct {
	AddrBits int
	DataBits int
	WriteGap time.Duration
}

// Spec is the board's command dialect. Replies are echo-verified and at
// most one echoed command plus one register value long, so the reply cap
// doubles as a fixed-length read bound.
func Spec(cfg Config) protocol.Spec {
	return protocol.Spec{
		Kind:              protocol.KindAdapter,
		Name:              "fpga-hex",
		RequestTerminator: "\n",
		ReplyTerminator:   "\n",
		EchoVerify:        true,
		MaxReplySize:      1 + hexChars(cfg.AddrBits) + hexChars(cfg.DataBits) + 3,
	}
}

func hexChars(bits int) int {
	return (bits + 3) / 4
}

type gapSetter interface {
	SetWriteGap(gap time.Duration)
}

type Driver struct {
	logger  *slog.Logger
	tr      transport.Transport
	cfg     Config
	timeout time.Duration
	engine  *session.Engine

	addrChars int
	dataChars int
	addrMax   uint64
	dataMax   uint64
}

type Option func(*Driver)

func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

func New(logger *slog.Logger, tr transport.Transport, cfg Config, opts ...Option) *Driver {
	d := &Driver{
		logger:    logger.With("component", "fpga"),
		tr:        tr,
		cfg:       cfg,
		timeout:   session.DefaultTimeout,
		addrChars: hexChars(cfg.AddrBits),
		dataChars: hexChars(cfg.DataBits),
		addrMax:   1<<cfg.AddrBits - 1,
		dataMax:   1<<cfg.DataBits - 1,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Open(ctx context.Context) error {
	if g, ok := d.tr.(gapSetter); ok && d.cfg.WriteGap > 0 {
		g.SetWriteGap(d.cfg.WriteGap)
	}
	if err := d.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	d.engine = session.New(d.logger, d.tr, Spec(d.cfg), capability.Record{}, session.WithTimeout(d.timeout))
	d.logger.Info("fpga opened", "addr_bits", d.cfg.AddrBits, "data_bits", d.cfg.DataBits)

	return nil
}

func (d *Driver) Close() error {
	d.engine = nil

	return d.tr.Close()
}

// WriteReg writes one register. The board echoes the exact command back;
// a garbled echo fails the transaction.
func (d *Driver) WriteReg(ctx context.Context, addr, data uint64) error {
	if d.engine == nil {
		return ErrNotOpen
	}
	if addr > d.addrMax {
		return fmt.Errorf("%w: address %#x over %d bits", ErrOutOfRange, addr, d.cfg.AddrBits)
	}
	if data > d.dataMax {
		return fmt.Errorf("%w: data %#x over %d bits", ErrOutOfRange, data, d.cfg.DataBits)
	}

	op := protocol.Operation{
		Kind:     protocol.OpRaw,
		Mnemonic: fmt.Sprintf("w%0*X%0*X", d.addrChars, addr, d.dataChars, data),
	}
	if _, err := d.engine.Execute(ctx, op); err != nil {
		return fmt.Errorf("write %#x: %w", addr, err)
	}

	return nil
}

// ReadReg reads one register and decodes the hexadecimal value that
// follows the echoed command.
func (d *Driver) ReadReg(ctx context.Context, addr uint64) (uint64, error) {
	if d.engine == nil {
		return 0, ErrNotOpen
	}
	if addr > d.addrMax {
		return 0, fmt.Errorf("%w: address %#x over %d bits", ErrOutOfRange, addr, d.cfg.AddrBits)
	}

	op := protocol.Operation{
		Kind:     protocol.OpRaw,
		Mnemonic: fmt.Sprintf("r%0*X", d.addrChars, addr),
		Arity:    1,
	}
	rep, err := d.engine.Execute(ctx, op)
	if err != nil {
		return 0, fmt.Errorf("read %#x: %w", addr, err)
	}
	if len(rep.Fields) == 0 {
		return 0, fmt.Errorf("%w: read %#x", ErrBadReply, addr)
	}

	data, err := strconv.ParseUint(rep.Fields[0].String(), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: read %#x returned %q", ErrBadReply, addr, rep.Fields[0].String())
	}

	return data, nil
}

// UpdateReg does a read-modify-write under the given mask.
func (d *Driver) UpdateReg(ctx context.Context, addr, mask, data uint64) error {
	current, err := d.ReadReg(ctx, addr)
	if err != nil {
		return err
	}

	return d.WriteReg(ctx, addr, current&^mask|data&mask)
}
