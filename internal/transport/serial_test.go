package transport

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestWritePacedSpacesBytes(t *testing.T) {
	var buf bytes.Buffer
	gap := 5 * time.Millisecond

	start := time.Now()
	if err := writePaced(context.Background(), &buf, []byte("w1A"), gap); err != nil {
		t.Fatalf("write paced: %v", err)
	}
	elapsed := time.Since(start)

	if got := buf.String(); got != "w1A" {
		t.Fatalf("payload = %q, want %q", got, "w1A")
	}
	if elapsed < 2*gap {
		t.Fatalf("elapsed %v, want at least %v between three bytes", elapsed, 2*gap)
	}
}

func TestWritePacedSkipsTrailingGap(t *testing.T) {
	var buf bytes.Buffer
	gap := 500 * time.Millisecond

	start := time.Now()
	if err := writePaced(context.Background(), &buf, []byte("A"), gap); err != nil {
		t.Fatalf("write paced: %v", err)
	}

	if elapsed := time.Since(start); elapsed >= gap {
		t.Fatalf("single byte took %v, gap after the last byte should be skipped", elapsed)
	}
}

func TestWritePacedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := writePaced(ctx, &buf, []byte("xy"), 0); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes after cancel, want 0", buf.Len())
	}
}
