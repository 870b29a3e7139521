package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// serialPollTimeout bounds single driver reads so the accumulate loop can
// observe the ctx deadline between polls.
const serialPollTimeout = 50 * time.Millisecond

// SerialTransport drives a UART/serial instrument channel.
type SerialTransport struct {
	portName string
	baudRate int
	writeGap time.Duration

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Kind() Kind {
	return KindSerial
}

// SetWriteGap enables paced writes with the given delay between bytes. Some
// register bridges drop characters when commands arrive back to back.
func (t *SerialTransport) SetWriteGap(gap time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeGap = gap
}

func (t *SerialTransport) PortName() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.portName
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port != nil
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.portName == "" {
		return errors.New("serial port is empty")
	}
	if t.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", t.baudRate)
	}

	port, err := serial.Open(t.portName, &serial.Mode{BaudRate: t.baudRate})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(serialPollTimeout); err != nil {
		_ = port.Close()

		return fmt.Errorf("set serial read timeout: %w", err)
	}
	t.port = port

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil

	return err
}

func (t *SerialTransport) Write(ctx context.Context, payload []byte) error {
	port, gap, err := t.currentPort()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if gap > 0 {
		return writePaced(ctx, port, payload, gap)
	}
	if err := writeFull(ctx, port, payload); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}

	return nil
}

func (t *SerialTransport) ReadUntil(ctx context.Context, terminator []byte, maxLen int) ([]byte, error) {
	port, _, err := t.currentPort()
	if err != nil {
		return nil, err
	}

	return collectUntil(ctx, port.Read, terminator, maxLen)
}

func (t *SerialTransport) currentPort() (serial.Port, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, 0, ErrNotConnected
	}

	return t.port, t.writeGap, nil
}

func writePaced(ctx context.Context, w io.Writer, payload []byte, gap time.Duration) error {
	for i := range payload {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFull(ctx, w, payload[i:i+1]); err != nil {
			return fmt.Errorf("serial write byte %d: %w", i, err)
		}
		// The gap paces consecutive bytes; the last byte needs none.
		if i < len(payload)-1 {
			time.Sleep(gap)
		}
	}

	return nil
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}

	return nil
}
