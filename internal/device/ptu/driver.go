// Package ptu drives FLIR E-series pan-tilt units over serial. The dialect
// is echo-verified: the unit repeats the command and marks acceptance with
// an asterisk. Feedback is switched to terse mode at open time so replies
// have a regular comma-separated shape.
package ptu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/session"
	"github.com/benchhw/benchlink/internal/transport"
)

// arcsecToRadians converts the unit's arc-seconds-per-step resolution
// report to radians per native step.
const arcsecToRadians = math.Pi / (180 * 3600)

var (
	ErrNotOpen       = errors.New("ptu is not open")
	ErrCommandFailed = errors.New("ptu rejected the command")
	ErrBadReply      = errors.New("ptu reply carried no value")
)

// Spec is the pan-tilt unit's command dialect: space-terminated requests,
// command echo, '*' success marker, comma-separated values.
func Spec() protocol.Spec {
	return protocol.Spec{
		Kind:              protocol.KindAdapter,
		Name:              "ptu-echo",
		RequestTerminator: " ",
		ReplyTerminator:   "\n",
		EchoVerify:        true,
		SuccessMarker:     "*",
		FieldSep:          ",",
		MaxReplySize:      1024,
	}
}

type Driver struct {
	logger  *slog.Logger
	tr      transport.Transport
	timeout time.Duration
	engine  *session.Engine

	version string
	rec     capability.Record
}

type Option func(*Driver)

func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

func New(logger *slog.Logger, tr transport.Transport, opts ...Option) *Driver {
	d := &Driver{
		logger:  logger.With("component", "ptu"),
		tr:      tr,
		timeout: session.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Open connects the serial port, queries identity, switches the unit to
// terse feedback and discovers axis limits and resolution.
func (d *Driver) Open(ctx context.Context) error {
	if err := d.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	d.engine = session.New(d.logger, d.tr, Spec(), capability.Record{}, session.WithTimeout(d.timeout))

	version, err := d.queryString(ctx, "VV")
	if err != nil {
		return fmt.Errorf("query version: %w", err)
	}
	model, err := d.queryString(ctx, "VM")
	if err != nil {
		return fmt.Errorf("query model: %w", err)
	}
	serial, err := d.queryString(ctx, "VS")
	if err != nil {
		return fmt.Errorf("query serial number: %w", err)
	}

	ok, err := d.engine.Command(ctx, "FT")
	if err != nil {
		return fmt.Errorf("set terse feedback: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: FT", ErrCommandFailed)
	}

	axes, err := d.discoverAxes(ctx)
	if err != nil {
		return err
	}

	d.version = version
	d.rec = capability.Record{Model: model, Serial: serial, Axes: axes}
	d.logger.Info("ptu identified", "model", model, "serial", serial, "version", version)

	return nil
}

func (d *Driver) discoverAxes(ctx context.Context) (*capability.AxisCaps, error) {
	panMin, err := d.queryInt(ctx, "PN")
	if err != nil {
		return nil, fmt.Errorf("query pan minimum: %w", err)
	}
	panMax, err := d.queryInt(ctx, "PX")
	if err != nil {
		return nil, fmt.Errorf("query pan maximum: %w", err)
	}
	tiltMin, err := d.queryInt(ctx, "TN")
	if err != nil {
		return nil, fmt.Errorf("query tilt minimum: %w", err)
	}
	tiltMax, err := d.queryInt(ctx, "TX")
	if err != nil {
		return nil, fmt.Errorf("query tilt maximum: %w", err)
	}

	// Resolution queries report arc-seconds per native step.
	panRes, err := d.queryFloat(ctx, "PR")
	if err != nil {
		return nil, fmt.Errorf("query pan resolution: %w", err)
	}
	tiltRes, err := d.queryFloat(ctx, "TR")
	if err != nil {
		return nil, fmt.Errorf("query tilt resolution: %w", err)
	}

	return &capability.AxisCaps{
		PanMin:         panMin,
		PanMax:         panMax,
		TiltMin:        tiltMin,
		TiltMax:        tiltMax,
		PanResolution:  panRes * arcsecToRadians,
		TiltResolution: tiltRes * arcsecToRadians,
	}, nil
}

func (d *Driver) Close() error {
	d.engine = nil

	return d.tr.Close()
}

func (d *Driver) Version() string {
	return d.version
}

func (d *Driver) Model() string {
	return d.rec.Model
}

func (d *Driver) Serial() string {
	return d.rec.Serial
}

func (d *Driver) Axes() *capability.AxisCaps {
	return d.rec.Axes
}

// SetPositionNative points the unit at the requested pan and tilt in
// native steps. The unit buffers both targets before the await command
// starts coordinated motion.
func (d *Driver) SetPositionNative(ctx context.Context, pan, tilt int) error {
	if d.engine == nil {
		return ErrNotOpen
	}

	steps := []struct {
		cmd  string
		args []int
	}{
		{cmd: "S"},
		{cmd: "PP", args: []int{pan}},
		{cmd: "TP", args: []int{tilt}},
		{cmd: "A"},
	}
	for _, step := range steps {
		ok, err := d.engine.Command(ctx, step.cmd, step.args...)
		if err != nil {
			return fmt.Errorf("command %s: %w", step.cmd, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrCommandFailed, step.cmd)
		}
	}
	d.logger.Debug("position set", "pan", pan, "tilt", tilt)

	return nil
}

// PositionNative reads the current pan and tilt in native steps.
func (d *Driver) PositionNative(ctx context.Context) (pan, tilt int, err error) {
	if d.engine == nil {
		return 0, 0, ErrNotOpen
	}

	pan, err = d.queryInt(ctx, "PP")
	if err != nil {
		return 0, 0, fmt.Errorf("query pan position: %w", err)
	}
	tilt, err = d.queryInt(ctx, "TP")
	if err != nil {
		return 0, 0, fmt.Errorf("query tilt position: %w", err)
	}

	return pan, tilt, nil
}

// SetPositionRadians points the unit using radians from center.
func (d *Driver) SetPositionRadians(ctx context.Context, pan, tilt float64) error {
	axes := d.rec.Axes
	if axes == nil {
		return ErrNotOpen
	}

	return d.SetPositionNative(ctx, int(pan/axes.PanResolution), int(tilt/axes.TiltResolution))
}

// SetPositionDegrees points the unit using degrees from center.
func (d *Driver) SetPositionDegrees(ctx context.Context, pan, tilt float64) error {
	return d.SetPositionRadians(ctx, pan*math.Pi/180, tilt*math.Pi/180)
}

// SetPositionAzEl points the unit at the requested azimuth and elevation
// in radians.
func (d *Driver) SetPositionAzEl(ctx context.Context, azimuth, elevation float64) error {
	return d.SetPositionRadians(ctx, azimuth, elevation)
}

func (d *Driver) queryString(ctx context.Context, mnemonic string) (string, error) {
	rep, err := d.engine.Query(ctx, mnemonic)
	if err != nil {
		return "", err
	}
	if !rep.Success || len(rep.Fields) == 0 {
		return "", fmt.Errorf("%w: %s", ErrBadReply, mnemonic)
	}

	return rep.Render(", "), nil
}

func (d *Driver) queryInt(ctx context.Context, mnemonic string) (int, error) {
	rep, err := d.engine.Query(ctx, mnemonic)
	if err != nil {
		return 0, err
	}
	if !rep.Success {
		return 0, fmt.Errorf("%w: %s", ErrCommandFailed, mnemonic)
	}
	v, ok := rep.Int(0)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrBadReply, mnemonic)
	}

	return int(v), nil
}

func (d *Driver) queryFloat(ctx context.Context, mnemonic string) (float64, error) {
	rep, err := d.engine.Query(ctx, mnemonic)
	if err != nil {
		return 0, err
	}
	if !rep.Success || len(rep.Fields) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadReply, mnemonic)
	}
	f := rep.Fields[0]
	switch f.Kind {
	case protocol.FieldInt:
		return float64(f.Int), nil
	case protocol.FieldFloat:
		return f.Float, nil
	}

	return 0, fmt.Errorf("%w: %s is %q", ErrBadReply, mnemonic, f.Str)
}
