package fpga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/transport"
)

// fakeBoard scripts a register-mapped board behind the transport
// interface. The echoed command is part of every reply.
type fakeBoard struct {
	replies map[string]string
	wire    []string
	pending string
}

func (f *fakeBoard) Kind() transport.Kind {
	return transport.KindSerial
}

func (f *fakeBoard) Connect(_ context.Context) error {
	return nil
}

func (f *fakeBoard) Close() error {
	return nil
}

func (f *fakeBoard) Write(_ context.Context, payload []byte) error {
	cmd := string(payload)
	f.wire = append(f.wire, cmd)
	reply, ok := f.replies[cmd]
	if !ok {
		return fmt.Errorf("unscripted command %q", cmd)
	}
	f.pending = reply

	return nil
}

func (f *fakeBoard) ReadUntil(_ context.Context, _ []byte, _ int) ([]byte, error) {
	if f.pending == "" {
		return nil, transport.ErrTimeout
	}
	reply := f.pending
	f.pending = ""

	return []byte(reply), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() Config {
	return Config{AddrBits: 8, DataBits: 16}
}

func TestWriteReadReg(t *testing.T) {
	fake := &fakeBoard{
		replies: map[string]string{
			"w1AF00D\n": "w1AF00D\n",
			"r1A\n":     "r1AF00D\n",
			"r00\n":     "r000123\n",
		},
	}
	drv := New(discardLogger(), fake, testConfig())
	ctx := context.Background()
	if err := drv.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer drv.Close()

	if err := drv.WriteReg(ctx, 0x1A, 0xF00D); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := fake.wire[len(fake.wire)-1]; got != "w1AF00D\n" {
		t.Fatalf("wire = %q, want w1AF00D", got)
	}

	data, err := drv.ReadReg(ctx, 0x1A)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data != 0xF00D {
		t.Fatalf("data = %#x, want 0xf00d", data)
	}

	// Zero-padded hex must not be read back as a decimal number.
	data, err = drv.ReadReg(ctx, 0x00)
	if err != nil {
		t.Fatalf("read padded: %v", err)
	}
	if data != 0x0123 {
		t.Fatalf("data = %#x, want 0x123", data)
	}
}

func TestEchoMismatchFailsWrite(t *testing.T) {
	fake := &fakeBoard{
		replies: map[string]string{
			"w1AF00D\n": "w1AF00F\n",
		},
	}
	drv := New(discardLogger(), fake, testConfig())
	ctx := context.Background()
	if err := drv.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	err := drv.WriteReg(ctx, 0x1A, 0xF00D)
	if !errors.Is(err, protocol.ErrEchoMismatch) {
		t.Fatalf("err = %v, want ErrEchoMismatch", err)
	}
}

func TestRegisterWidthGuards(t *testing.T) {
	drv := New(discardLogger(), &fakeBoard{}, testConfig())
	ctx := context.Background()
	if err := drv.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := drv.WriteReg(ctx, 0x100, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("wide addr err = %v, want ErrOutOfRange", err)
	}
	if err := drv.WriteReg(ctx, 0, 0x10000); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("wide data err = %v, want ErrOutOfRange", err)
	}
	if _, err := drv.ReadReg(ctx, 0x100); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("wide read err = %v, want ErrOutOfRange", err)
	}
}

func TestUpdateReg(t *testing.T) {
	fake := &fakeBoard{
		replies: map[string]string{
			"r1A\n":     "r1AF00D\n",
			"w1AF02D\n": "w1AF02D\n",
		},
	}
	drv := New(discardLogger(), fake, testConfig())
	ctx := context.Background()
	if err := drv.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Set bits 0x00F0 to 0x0020, leaving the rest of 0xF00D alone.
	if err := drv.UpdateReg(ctx, 0x1A, 0x00F0, 0x0020); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := fake.wire[len(fake.wire)-1]; got != "w1AF02D\n" {
		t.Fatalf("wire = %q, want w1AF02D", got)
	}
}

func TestNotOpen(t *testing.T) {
	drv := New(discardLogger(), &fakeBoard{}, testConfig())
	ctx := context.Background()

	if err := drv.WriteReg(ctx, 0, 0); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("write err = %v, want ErrNotOpen", err)
	}
	if _, err := drv.ReadReg(ctx, 0); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("read err = %v, want ErrNotOpen", err)
	}
}
