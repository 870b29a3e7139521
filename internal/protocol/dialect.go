// Package protocol encodes the command/reply dialects spoken by the
// supported instruments: framing, echo verification, command composition
// and reply parsing. A Spec is selected once at connection time and never
// mutated afterward.
package protocol

import (
	"errors"
	"fmt"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/transport"
)

// Kind tags the dialect variants the switch core selects between. Device
// adapters build their own Spec values from the same fields under
// KindAdapter.
type Kind int

const (
	KindAdapter Kind = iota
	KindLegacyBinary
	KindUSBSCPI
	KindNetworkSCPI
)

// ErrNoDialect is returned for a transport/firmware combination with no
// known dialect. Selection never falls back to a default.
var ErrNoDialect = errors.New("no dialect for device")

// Spec describes one command/reply dialect. It is immutable once selected.
type Spec struct {
	Kind Kind
	Name string

	// RequestPrefix is prepended to every command (the USB-SCPI session
	// marker); RequestTerminator closes the on-wire request. QuerySuffix is
	// appended to read operations before framing. SessionClose, when set,
	// is sent in the same write after the request to end the device-side
	// session gracefully.
	RequestPrefix     string
	RequestTerminator string
	QuerySuffix       string
	SessionClose      string

	// Replies must start with ReplyPrefix and end with ReplyTerminator when
	// either is set; a violation is a framing error.
	ReplyPrefix     string
	ReplyTerminator string

	// EchoVerify requires the reply to contain the exact command sent;
	// absence means the operation failed, not merely unparsed. MarkerEcho
	// requires the first reply byte to echo the first byte written.
	EchoVerify bool
	MarkerEcho bool

	// SuccessMarker, when set, must lead the payload after echo stripping
	// for the reply to be considered successful. SuccessToken, when set, is
	// the distinguished reply value signalling command success; it is
	// checked by the transaction engine for set-style operations.
	SuccessMarker string
	SuccessToken  string

	FieldSep     string
	MaxReplySize int

	// ConnectPerCall transports open and tear down the channel around each
	// request/response.
	ConnectPerCall bool

	// LegacyCommands maps operation mnemonics to the single-character
	// commands of the legacy binary dialect.
	LegacyCommands map[string]string
}

// NetworkSCPI is the telnet dialect of the RC series. The reply terminator
// is the byte-reversed request terminator, which makes end-of-reply
// detection unambiguous even when the payload contains CR or LF.
func NetworkSCPI() Spec {
	return Spec{
		Kind:              KindNetworkSCPI,
		Name:              "network-scpi",
		RequestTerminator: "\r\n",
		QuerySuffix:       "?",
		ReplyPrefix:       "\r\n",
		ReplyTerminator:   "\n\r",
		SuccessToken:      "1",
		FieldSep:          "=",
		MaxReplySize:      1024,
		ConnectPerCall:    true,
	}
}

// USBSCPI is the report-oriented dialect of the USB series: requests carry
// a session marker, replies echo its first byte.
func USBSCPI() Spec {
	return Spec{
		Kind:          KindUSBSCPI,
		Name:          "usb-scpi",
		RequestPrefix: "*:",
		QuerySuffix:   "?",
		MarkerEcho:    true,
		SuccessToken:  "1",
		FieldSep:      "=",
		MaxReplySize:  64,
	}
}

// LegacyBinary is the single-character command dialect of very old USB
// firmware. Replies are the raw value with no framing.
func LegacyBinary() Spec {
	return Spec{
		Kind:         KindLegacyBinary,
		Name:         "legacy-binary",
		MaxReplySize: 64,
		LegacyCommands: map[string]string{
			"MN":    "M",
			"SN":    "S",
			"STATE": "P",
		},
	}
}

// Select returns the dialect for a transport kind and firmware family. An
// unrecognized combination is a classification failure; there is no
// default dialect.
func Select(tk transport.Kind, family capability.Family) (Spec, error) {
	switch {
	case tk == transport.KindTCP && family == capability.FamilyRC:
		return NetworkSCPI(), nil
	case tk == transport.KindHID && family == capability.FamilyUSB:
		return USBSCPI(), nil
	case tk == transport.KindHID && family == capability.FamilyLegacy:
		return LegacyBinary(), nil
	}

	return Spec{}, fmt.Errorf("%w: family %q over %s", ErrNoDialect, family, tk)
}

// Bootstrap returns the identification dialect used before the firmware
// family is known. It is a function of the transport kind alone.
func Bootstrap(tk transport.Kind) (Spec, error) {
	switch tk {
	case transport.KindTCP:
		return NetworkSCPI(), nil
	case transport.KindHID:
		return USBSCPI(), nil
	}

	return Spec{}, fmt.Errorf("%w: no identification dialect over %s", ErrNoDialect, tk)
}
