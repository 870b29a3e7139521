package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sstallion/go-hid"
)

// hidReportSize is the interrupt report payload size used by the supported
// bench instruments.
const hidReportSize = 64

const hidPollTimeout = 50 * time.Millisecond

// HIDTransport drives a USB-HID instrument using fixed-size reports. Reads
// return one report truncated at the first sentinel byte; the terminator
// argument of ReadUntil is ignored.
type HIDTransport struct {
	vendorID  uint16
	productID uint16

	mu      sync.Mutex
	dev     *hid.Device
	writeMu sync.Mutex
}

func NewHIDTransport(vendorID, productID uint16) *HIDTransport {
	return &HIDTransport{vendorID: vendorID, productID: productID}
}

func (t *HIDTransport) Kind() Kind {
	return KindHID
}

func (t *HIDTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dev != nil
}

func (t *HIDTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := hid.Init(); err != nil {
		return fmt.Errorf("init hidapi: %w", err)
	}
	dev, err := hid.OpenFirst(t.vendorID, t.productID)
	if err != nil {
		_ = hid.Exit()

		return fmt.Errorf("open hid device %04x:%04x: %w", t.vendorID, t.productID, err)
	}
	t.dev = dev

	return nil
}

func (t *HIDTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil
	}
	err := t.dev.Close()
	t.dev = nil
	if exitErr := hid.Exit(); err == nil {
		err = exitErr
	}

	return err
}

// Write sends one output report: report ID zero, payload NUL-padded to the
// report size.
func (t *HIDTransport) Write(ctx context.Context, payload []byte) error {
	dev, err := t.currentDev()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(payload) > hidReportSize {
		return fmt.Errorf("payload exceeds report size: %d > %d", len(payload), hidReportSize)
	}

	report := make([]byte, hidReportSize+1)
	copy(report[1:], payload)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := dev.Write(report); err != nil {
		return fmt.Errorf("hid write: %w", err)
	}

	return nil
}

func (t *HIDTransport) ReadUntil(ctx context.Context, _ []byte, maxLen int) ([]byte, error) {
	dev, err := t.currentDev()
	if err != nil {
		return nil, err
	}

	report := make([]byte, hidReportSize)
	for {
		if err := ctx.Err(); err != nil {
			return deadlineResult(nil, err)
		}

		n, err := dev.ReadWithTimeout(report, hidPollTimeout)
		if err != nil {
			return nil, fmt.Errorf("hid read: %w", err)
		}
		if n == 0 {
			continue
		}

		payload := truncateAtSentinel(report[:n])
		if maxLen > 0 && len(payload) > maxLen {
			payload = payload[:maxLen]
		}

		return payload, nil
	}
}

func (t *HIDTransport) currentDev() (*hid.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil, ErrNotConnected
	}

	return t.dev, nil
}
