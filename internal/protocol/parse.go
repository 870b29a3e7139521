package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFraming      = errors.New("reply framing is invalid")
	ErrEchoMismatch = errors.New("reply does not echo the sent command")
	ErrArity        = errors.New("reply has too few fields")
)

// Parse strips framing, verifies the reply corresponds to the command that
// was sent, and converts the payload tokens to typed values. sent is the
// on-wire command text (see SentCommand); arity is the minimum field count.
// Extra fields are preserved, since some dialects echo the command name as
// an extra leading field.
func Parse(spec Spec, raw []byte, sent string, arity int) (Reply, error) {
	if spec.Kind == KindLegacyBinary {
		return parseLegacy(raw, arity)
	}

	payload := string(raw)

	if spec.ReplyPrefix != "" {
		if !strings.HasPrefix(payload, spec.ReplyPrefix) {
			return Reply{}, fmt.Errorf("%w: missing prefix %q in %q", ErrFraming, spec.ReplyPrefix, payload)
		}
		payload = strings.TrimPrefix(payload, spec.ReplyPrefix)
	}
	if spec.ReplyTerminator != "" {
		if !strings.HasSuffix(payload, spec.ReplyTerminator) {
			return Reply{}, fmt.Errorf("%w: missing terminator %q in %q", ErrFraming, spec.ReplyTerminator, payload)
		}
		payload = strings.TrimSuffix(payload, spec.ReplyTerminator)
	}

	if spec.MarkerEcho {
		marker := spec.RequestPrefix + sent
		if payload == "" || marker == "" || payload[0] != marker[0] {
			return Reply{}, fmt.Errorf("%w: marker byte not echoed in %q", ErrEchoMismatch, payload)
		}
		payload = payload[1:]
	}

	payload = strings.TrimSpace(payload)

	if spec.EchoVerify {
		if !strings.Contains(payload, sent) {
			return Reply{}, fmt.Errorf("%w: %q not found in %q", ErrEchoMismatch, sent, payload)
		}
		payload = strings.Replace(payload, sent, "", 1)
		payload = strings.TrimLeft(payload, " ")
	}

	success := true
	if spec.SuccessMarker != "" {
		if strings.HasPrefix(payload, spec.SuccessMarker) {
			payload = strings.TrimPrefix(payload, spec.SuccessMarker)
			payload = strings.TrimLeft(payload, " ")
		} else {
			success = false
		}
	}

	fields := splitFields(payload, spec.FieldSep)
	if len(fields) < arity {
		return Reply{}, fmt.Errorf("%w: got %d, expected %d in %q", ErrArity, len(fields), arity, payload)
	}

	return Reply{Fields: fields, Success: success}, nil
}

func parseLegacy(raw []byte, arity int) (Reply, error) {
	payload := strings.TrimSpace(string(raw))
	if payload == "" {
		return Reply{}, fmt.Errorf("%w: empty legacy reply", ErrFraming)
	}

	fields := []Field{Coerce(payload)}
	if len(fields) < arity {
		return Reply{}, fmt.Errorf("%w: got %d, expected %d", ErrArity, len(fields), arity)
	}

	return Reply{Fields: fields, Success: true}, nil
}

func splitFields(payload, sep string) []Field {
	if payload == "" {
		return nil
	}

	var tokens []string
	if sep == "" {
		tokens = []string{payload}
	} else {
		tokens = strings.Split(payload, sep)
	}

	fields := make([]Field, 0, len(tokens))
	for _, tok := range tokens {
		fields = append(fields, Coerce(strings.TrimSpace(tok)))
	}

	return fields
}
