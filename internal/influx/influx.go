// Package influx writes measurement points to an InfluxDB 1.x endpoint
// using the line protocol over HTTP.
package influx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benchhw/benchlink/internal/protocol"
)

// Point is one measurement sample.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// FormatLine renders a point in line protocol. Tags and fields are emitted
// in sorted key order so the output is stable.
func FormatLine(p Point) (string, error) {
	if p.Measurement == "" {
		return "", fmt.Errorf("point has no measurement name")
	}
	if len(p.Fields) == 0 {
		return "", fmt.Errorf("point %q has no fields", p.Measurement)
	}

	var b strings.Builder
	b.WriteString(escapeTag(p.Measurement))

	for _, key := range sortedKeys(p.Tags) {
		b.WriteByte(',')
		b.WriteString(escapeTag(key))
		b.WriteByte('=')
		b.WriteString(escapeTag(p.Tags[key]))
	}

	b.WriteByte(' ')
	for i, key := range sortedKeysAny(p.Fields) {
		if i > 0 {
			b.WriteByte(',')
		}
		value, err := formatFieldValue(p.Fields[key])
		if err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		b.WriteString(escapeTag(key))
		b.WriteByte('=')
		b.WriteString(value)
	}

	if !p.Time.IsZero() {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(p.Time.UnixNano(), 10))
	}

	return b.String(), nil
}

func formatFieldValue(v any) (string, error) {
	switch v := v.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10) + "i", nil
	case int64:
		return strconv.FormatInt(v, 10) + "i", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return strconv.Quote(v), nil
	case protocol.Field:
		switch v.Kind {
		case protocol.FieldInt:
			return formatFieldValue(v.Int)
		case protocol.FieldFloat:
			return formatFieldValue(v.Float)
		default:
			return formatFieldValue(v.Str)
		}
	}

	return "", fmt.Errorf("unsupported value type %T", v)
}

var tagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func sortedKeysAny(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Sender posts points to one database on an InfluxDB server.
type Sender struct {
	logger   *slog.Logger
	client   *http.Client
	writeURL string
}

func NewSender(logger *slog.Logger, baseURL, database string) *Sender {
	return &Sender{
		logger:   logger.With("component", "influx"),
		client:   &http.Client{Timeout: 10 * time.Second},
		writeURL: strings.TrimSuffix(baseURL, "/") + "/write?db=" + url.QueryEscape(database),
	}
}

// Write posts all points in one request.
func (s *Sender) Write(ctx context.Context, points ...Point) error {
	if len(points) == 0 {
		return nil
	}

	lines := make([]string, 0, len(points))
	for _, p := range points {
		line, err := FormatLine(p)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	body := strings.Join(lines, "\n")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.writeURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post points: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("influx returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	s.logger.Debug("points written", "count", len(points))

	return nil
}
