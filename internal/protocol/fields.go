package protocol

import (
	"strconv"
	"strings"
)

// FieldKind distinguishes the typed representations a reply token can take.
type FieldKind int

const (
	FieldInt FieldKind = iota + 1
	FieldFloat
	FieldString
)

// Field is one typed reply token.
type Field struct {
	Kind  FieldKind
	Int   int64
	Float float64
	Str   string
}

// Coerce converts a token to integer, then floating-point, then leaves it
// as a string. A failed conversion is not an error; it falls through to the
// next representation. The raw token is retained in Str so callers that
// need the exact wire text, such as hexadecimal register dialects, can
// recover it.
func Coerce(token string) Field {
	if v, err := strconv.ParseInt(token, 10, 64); err == nil {
		return Field{Kind: FieldInt, Int: v, Str: token}
	}
	if v, err := strconv.ParseFloat(token, 64); err == nil {
		return Field{Kind: FieldFloat, Float: v, Str: token}
	}

	return Field{Kind: FieldString, Str: token}
}

// String returns the token as it appeared on the wire. Fields constructed
// without a raw token fall back to formatting the typed value.
func (f Field) String() string {
	if f.Str != "" {
		return f.Str
	}

	switch f.Kind {
	case FieldInt:
		return strconv.FormatInt(f.Int, 10)
	case FieldFloat:
		return strconv.FormatFloat(f.Float, 'f', -1, 64)
	default:
		return f.Str
	}
}

// Reply is the ordered sequence of typed fields extracted from a framed
// payload, plus the dialect-level success flag.
type Reply struct {
	Fields  []Field
	Success bool
}

// Int returns field i as an integer when present.
func (r Reply) Int(i int) (int64, bool) {
	if i < 0 || i >= len(r.Fields) || r.Fields[i].Kind != FieldInt {
		return 0, false
	}

	return r.Fields[i].Int, true
}

// LastInt returns the trailing integer field; state queries carry the value
// last regardless of whether the dialect echoes the command name as a
// leading field.
func (r Reply) LastInt() (int64, bool) {
	return r.Int(len(r.Fields) - 1)
}

// Render reassembles the payload text the fields were parsed from.
func (r Reply) Render(sep string) string {
	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		parts = append(parts, f.String())
	}

	return strings.Join(parts, sep)
}
