// Package capability classifies a device from its self-identification
// string. The resulting record parameterizes command composition and is
// read-only for the lifetime of the connection.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// Family tags the firmware generation a device speaks; dialect selection
// keys off it.
type Family string

const (
	FamilyRC  Family = "rc"
	FamilyUSB Family = "usb"
	// FamilyLegacy is never autodetected; it is applied through an explicit
	// dialect override for very old USB firmware.
	FamilyLegacy Family = "legacy"
)

// ErrUnclassified is returned when a model string matches no known
// template. The device cannot be safely driven in that case, since command
// syntax depends on the discovered fields; there is no default record.
var ErrUnclassified = errors.New("model matched no known template")

// SwitchCaps describes a switch-matrix device.
type SwitchCaps struct {
	Switches int
	Poles    rune
	States   int
	Revision string
}

// AxisCaps describes a pan-tilt device. Resolutions are radians per native
// step.
type AxisCaps struct {
	PanMin, PanMax   int
	TiltMin, TiltMax int
	PanResolution    float64
	TiltResolution   float64
}

// Record holds the structured facts derived from a device's self
// identification. Exactly one of Switch or Axes is populated.
type Record struct {
	Model  string
	Serial string
	Family Family
	Switch *SwitchCaps
	Axes   *AxisCaps
}

// QueryFunc issues one identification query and returns the reply payload
// for the given mnemonic (e.g. "MN" for model, "SN" for serial number).
type QueryFunc func(ctx context.Context, mnemonic string) (string, error)

// Identify queries the device for its model and serial number through the
// supplied transaction function and classifies the model string.
func Identify(ctx context.Context, query QueryFunc) (Record, error) {
	model, err := query(ctx, "MN")
	if err != nil {
		return Record{}, fmt.Errorf("query model: %w", err)
	}
	serial, err := query(ctx, "SN")
	if err != nil {
		return Record{}, fmt.Errorf("query serial number: %w", err)
	}

	return Classify(model, serial)
}
