package transport

import (
	"context"
	"errors"
)

// Kind identifies the physical channel a transport drives.
type Kind int

const (
	KindSerial Kind = iota + 1
	KindTCP
	KindHID
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindTCP:
		return "tcp"
	case KindHID:
		return "hid"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("transport is not connected")
	ErrTimeout      = errors.New("read timed out")
)

// Transport is one open channel to an instrument. A transaction engine owns
// the transport for the duration of a call; there is no retry at this layer.
type Transport interface {
	Kind() Kind
	Connect(ctx context.Context) error
	Close() error
	Write(ctx context.Context, payload []byte) error
	// ReadUntil returns as soon as the terminator sequence is observed, or
	// maxLen bytes have accumulated, or the ctx deadline passes. Partial data
	// already received when the deadline hits is returned as-is; a deadline
	// with nothing received is ErrTimeout. Report-oriented transports return
	// one report and ignore the terminator.
	ReadUntil(ctx context.Context, terminator []byte, maxLen int) ([]byte, error)
}
