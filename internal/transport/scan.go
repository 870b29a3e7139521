package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// readChunkFunc reads whatever is currently available into buf. A return of
// (0, nil) means no data arrived within the implementation's poll interval.
type readChunkFunc func(buf []byte) (int, error)

// collectUntil accumulates chunks until the terminator is observed, maxLen
// bytes have been collected, or the ctx deadline passes. On deadline, partial
// data is returned without error; an empty buffer is ErrTimeout.
func collectUntil(ctx context.Context, read readChunkFunc, terminator []byte, maxLen int) ([]byte, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return deadlineResult(buf, err)
		}

		n, err := read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			// Session-per-call devices close the socket after the reply;
			// hand whatever arrived to the parser.
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				return buf, nil
			}

			return nil, fmt.Errorf("read: %w", err)
		}

		if len(terminator) > 0 {
			if idx := bytes.Index(buf, terminator); idx >= 0 {
				return buf[:idx+len(terminator)], nil
			}
		}
		// Each request gets exactly one collectUntil call, so bytes past
		// maxLen belong to an oversized reply, not to a later read. They
		// are dropped rather than buffered.
		if maxLen > 0 && len(buf) >= maxLen {
			return buf[:maxLen], nil
		}
	}
}

func deadlineResult(buf []byte, ctxErr error) ([]byte, error) {
	if len(buf) > 0 {
		return buf, nil
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}

	return nil, ctxErr
}

// truncateAtSentinel cuts a fixed-size report at the first NUL or other
// non-printable byte. Devices pad report tails with garbage after the
// string payload.
func truncateAtSentinel(report []byte) []byte {
	for i, b := range report {
		if b < 0x20 || b > 0x7e {
			return report[:i]
		}
	}

	return report
}
