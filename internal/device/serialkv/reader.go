// Package serialkv reads free-running telemetry from instruments that
// print space-separated key:value records, one record per line. The
// instrument is never commanded; it just talks.
package serialkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/transport"
)

const maxRecordSize = 1024

var ErrMalformed = errors.New("malformed telemetry record")

// Record is one line of telemetry with typed values, keyed by the
// instrument's own field names.
type Record map[string]protocol.Field

type Reader struct {
	logger *slog.Logger
	tr     transport.Transport
}

func New(logger *slog.Logger, tr transport.Transport) *Reader {
	return &Reader{
		logger: logger.With("component", "serialkv"),
		tr:     tr,
	}
}

func (r *Reader) Open(ctx context.Context) error {
	return r.tr.Connect(ctx)
}

func (r *Reader) Close() error {
	return r.tr.Close()
}

// Read blocks until the next full record line arrives and parses it.
func (r *Reader) Read(ctx context.Context) (Record, error) {
	line, err := r.tr.ReadUntil(ctx, []byte("\r"), maxRecordSize)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	rec, err := ParseRecord(string(line))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("record", "fields", len(rec))

	return rec, nil
}

// ParseRecord splits a line such as "temp:23.5 hum:41 state:ok" into typed
// fields. A token without a colon makes the whole record malformed, since
// a partial line means the stream was picked up mid-record.
func ParseRecord(line string) (Record, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	rec := make(Record, len(tokens))
	for _, tok := range tokens {
		key, value, found := strings.Cut(tok, ":")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: token %q", ErrMalformed, tok)
		}
		rec[key] = protocol.Coerce(value)
	}

	return rec, nil
}
