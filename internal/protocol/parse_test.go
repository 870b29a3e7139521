package protocol

import (
	"errors"
	"testing"
)

func TestParseNetworkFramedQuery(t *testing.T) {
	rep, err := Parse(NetworkSCPI(), []byte("\r\nMN=RC-2SP6T-A12\n\r"), "MN?", 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !rep.Success {
		t.Fatalf("expected success")
	}
	if len(rep.Fields) != 2 {
		t.Fatalf("field count mismatch: got %d", len(rep.Fields))
	}
	if rep.Fields[0].Kind != FieldString || rep.Fields[0].Str != "MN" {
		t.Fatalf("leading field mismatch: %+v", rep.Fields[0])
	}
	if rep.Fields[1].Str != "RC-2SP6T-A12" {
		t.Fatalf("model field mismatch: %+v", rep.Fields[1])
	}
}

func TestParseNetworkFramingErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing prefix", "MN=RC-2SP6T-A12\n\r"},
		{"missing terminator", "\r\nMN=RC-2SP6T-A12"},
		{"request terminator instead of reply", "\r\nMN=RC-2SP6T-A12\r\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(NetworkSCPI(), []byte(tc.raw), "MN?", 1); !errors.Is(err, ErrFraming) {
				t.Fatalf("expected ErrFraming, got %v", err)
			}
		})
	}
}

func TestParseMarkerEcho(t *testing.T) {
	spec := USBSCPI()

	rep, err := Parse(spec, []byte("*2"), "SP8T:STATE?", 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := rep.Int(0); !ok || v != 2 {
		t.Fatalf("state field mismatch: %+v", rep.Fields)
	}

	// Marker byte absent means the operation failed, regardless of how
	// plausible the payload looks.
	if _, err := Parse(spec, []byte("2"), "SP8T:STATE?", 1); !errors.Is(err, ErrEchoMismatch) {
		t.Fatalf("expected ErrEchoMismatch, got %v", err)
	}
}

func TestParseEchoVerify(t *testing.T) {
	spec := Spec{
		Name:              "ptu-echo",
		RequestTerminator: " ",
		ReplyTerminator:   "\n",
		EchoVerify:        true,
		SuccessMarker:     "*",
		FieldSep:          ",",
		MaxReplySize:      1024,
	}

	rep, err := Parse(spec, []byte("PP * 1000\r\n"), "PP", 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !rep.Success {
		t.Fatalf("expected success marker to be honored")
	}
	if v, ok := rep.Int(0); !ok || v != 1000 {
		t.Fatalf("position field mismatch: %+v", rep.Fields)
	}

	// A reply lacking the sent command substring is always an echo
	// mismatch, even when the payload itself is valid.
	if _, err := Parse(spec, []byte("TP * 1000\r\n"), "PP", 1); !errors.Is(err, ErrEchoMismatch) {
		t.Fatalf("expected ErrEchoMismatch, got %v", err)
	}

	// Echo present but no success marker: parsed, not successful.
	rep, err = Parse(spec, []byte("PP ! parameter out of range\n"), "PP", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Success {
		t.Fatalf("expected failure without success marker")
	}
}

func TestParseArity(t *testing.T) {
	if _, err := Parse(NetworkSCPI(), []byte("\r\n2\n\r"), "SP6TA:STATE?", 2); !errors.Is(err, ErrArity) {
		t.Fatalf("expected ErrArity, got %v", err)
	}

	// Extra tokens are preserved, not discarded.
	rep, err := Parse(NetworkSCPI(), []byte("\r\nSP6TB:STATE=1\n\r"), "SP6TB:STATE:3", 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rep.Fields) != 2 {
		t.Fatalf("extra token dropped: %+v", rep.Fields)
	}
}

func TestParseLegacyBinary(t *testing.T) {
	rep, err := Parse(LegacyBinary(), []byte("RC-1SP4T-A3"), "M", 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Fields[0].Str != "RC-1SP4T-A3" {
		t.Fatalf("legacy payload mismatch: %+v", rep.Fields[0])
	}

	if _, err := Parse(LegacyBinary(), []byte("  "), "M", 1); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming on empty legacy reply, got %v", err)
	}
}

func TestCoerceTrialOrder(t *testing.T) {
	cases := []struct {
		token string
		kind  FieldKind
	}{
		{"42", FieldInt},
		{"-17", FieldInt},
		{"24.9", FieldFloat},
		{"1e3", FieldFloat},
		{"RC-2SP6T-A12", FieldString},
		{"", FieldString},
	}

	for _, tc := range cases {
		if got := Coerce(tc.token); got.Kind != tc.kind {
			t.Fatalf("coerce %q: got kind %d want %d", tc.token, got.Kind, tc.kind)
		}
	}
}

// Re-parsing a synthetic reply built from the parser's own output must
// yield the same typed values.
func TestParseRenderRoundTrip(t *testing.T) {
	spec := NetworkSCPI()
	raw := []byte("\r\nSP6TB:STATE=1\n\r")

	first, err := Parse(spec, raw, "SP6TB:STATE:3", 1)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}

	synthetic := []byte(spec.ReplyPrefix + first.Render(spec.FieldSep) + spec.ReplyTerminator)
	second, err := Parse(spec, synthetic, "SP6TB:STATE:3", 1)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}

	if len(first.Fields) != len(second.Fields) {
		t.Fatalf("field count drifted: %d vs %d", len(first.Fields), len(second.Fields))
	}
	for i := range first.Fields {
		if first.Fields[i] != second.Fields[i] {
			t.Fatalf("field %d drifted: %+v vs %+v", i, first.Fields[i], second.Fields[i])
		}
	}
}
