package serialkv

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/transport"
)

// fakeStream feeds queued lines to ReadUntil the way a chattering
// instrument would.
type fakeStream struct {
	lines []string
}

func (f *fakeStream) Kind() transport.Kind {
	return transport.KindSerial
}

func (f *fakeStream) Connect(_ context.Context) error {
	return nil
}

func (f *fakeStream) Close() error {
	return nil
}

func (f *fakeStream) Write(_ context.Context, _ []byte) error {
	return nil
}

func (f *fakeStream) ReadUntil(_ context.Context, _ []byte, _ int) ([]byte, error) {
	if len(f.lines) == 0 {
		return nil, transport.ErrTimeout
	}
	line := f.lines[0]
	f.lines = f.lines[1:]

	return []byte(line), nil
}

func TestReadTypedRecord(t *testing.T) {
	fake := &fakeStream{lines: []string{"temp:23.5 hum:41 state:ok\r"}}
	rdr := New(slog.New(slog.DiscardHandler), fake)
	ctx := context.Background()

	rec, err := rdr.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if f := rec["temp"]; f.Kind != protocol.FieldFloat || f.Float != 23.5 {
		t.Fatalf("temp = %+v, want float 23.5", f)
	}
	if f := rec["hum"]; f.Kind != protocol.FieldInt || f.Int != 41 {
		t.Fatalf("hum = %+v, want int 41", f)
	}
	if f := rec["state"]; f.Kind != protocol.FieldString || f.Str != "ok" {
		t.Fatalf("state = %+v, want string ok", f)
	}
}

func TestReadTimeout(t *testing.T) {
	rdr := New(slog.New(slog.DiscardHandler), &fakeStream{})
	ctx := context.Background()

	if _, err := rdr.Read(ctx); !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestParseRecordMalformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{name: "empty", line: "\r"},
		{name: "no colon", line: "temp 23.5\r"},
		{name: "bare colon", line: ":5\r"},
		{name: "partial pickup", line: "5 hum:41\r"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRecord(tc.line); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseRecordEmptyValue(t *testing.T) {
	rec, err := ParseRecord("flag: temp:20\r")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f := rec["flag"]; f.Kind != protocol.FieldString || f.Str != "" {
		t.Fatalf("flag = %+v, want empty string", f)
	}
}
