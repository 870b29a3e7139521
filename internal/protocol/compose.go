package protocol

import (
	"errors"
	"fmt"

	"github.com/benchhw/benchlink/internal/capability"
)

// OpKind classifies the abstract operations the composer renders.
type OpKind int

const (
	// OpQuery reads a named mnemonic such as "MN".
	OpQuery OpKind = iota + 1
	// OpGet reads a switch state.
	OpGet
	// OpSet writes a switch state.
	OpSet
	// OpRaw sends a pre-rendered command verbatim.
	OpRaw
)

// Channel identifies one switch, given either as a letter or a 0-based
// index. The zero value means "not specified".
type Channel struct {
	letter rune
	valid  bool
}

func ChannelLetter(r rune) Channel {
	return Channel{letter: r, valid: true}
}

func ChannelIndex(i int) Channel {
	return Channel{letter: rune('A' + i), valid: true}
}

func (c Channel) Letter() rune {
	return c.letter
}

func (c Channel) Valid() bool {
	return c.valid
}

// Operation is the abstract request a transaction renders and sends.
type Operation struct {
	Kind     OpKind
	Mnemonic string
	Channel  Channel
	State    int
	// Arity is the minimum number of parsed reply fields expected.
	Arity int
}

// Reads reports whether the operation queries the device rather than
// commanding it.
func (op Operation) Reads() bool {
	return op.Kind == OpQuery || op.Kind == OpGet
}

var (
	ErrUnsupportedStates = errors.New("unsupported state count")
	ErrUnknownOperation  = errors.New("unknown operation kind")
	ErrChannelRequired   = errors.New("channel is required")
	ErrNoSwitchCaps      = errors.New("record has no switch capabilities")
)

// Compose builds the dialect-correct command string for an operation.
// Unsupported combinations fail composition rather than emit a guessed
// command.
func Compose(spec Spec, rec capability.Record, op Operation) (string, error) {
	switch op.Kind {
	case OpRaw:
		return op.Mnemonic, nil
	case OpQuery:
		if spec.Kind == KindLegacyBinary {
			return legacyCommand(spec, op.Mnemonic)
		}

		return op.Mnemonic, nil
	case OpGet, OpSet:
		return composeState(spec, rec, op)
	}

	return "", fmt.Errorf("%w: %d", ErrUnknownOperation, op.Kind)
}

func composeState(spec Spec, rec capability.Record, op Operation) (string, error) {
	sw := rec.Switch
	if sw == nil {
		return "", ErrNoSwitchCaps
	}

	// The channel token is omitted when only one controllable switch
	// exists; otherwise it is required and normalized to a letter.
	ch := ""
	if sw.Switches > 1 {
		if !op.Channel.valid {
			return "", fmt.Errorf("%w: device has %d switches", ErrChannelRequired, sw.Switches)
		}
		ch = string(op.Channel.letter)
	}

	if spec.Kind == KindLegacyBinary {
		cmd, err := legacyCommand(spec, "STATE")
		if err != nil {
			return "", err
		}
		if op.Kind == OpSet {
			return fmt.Sprintf("%s%s%d", cmd, ch, op.State), nil
		}

		return cmd + ch, nil
	}

	switch {
	case sw.States == 2:
		if op.Kind == OpSet {
			return fmt.Sprintf("SET%s=%d", ch, op.State), nil
		}

		return "SET" + ch, nil
	case sw.States >= 4:
		if op.Kind == OpSet {
			return fmt.Sprintf("SP%dT%s:STATE:%d", sw.States, ch, op.State), nil
		}

		return fmt.Sprintf("SP%dT%s:STATE", sw.States, ch), nil
	}

	return "", fmt.Errorf("%w: %d", ErrUnsupportedStates, sw.States)
}

func legacyCommand(spec Spec, mnemonic string) (string, error) {
	cmd, ok := spec.LegacyCommands[mnemonic]
	if !ok {
		return "", fmt.Errorf("%w: no legacy command for %q", ErrUnknownOperation, mnemonic)
	}

	return cmd, nil
}

// SentCommand is the command text as it appears on the wire, excluding
// prefix and terminator. Echo verification matches against it.
func SentCommand(spec Spec, op Operation, cmd string) string {
	if op.Reads() && spec.Kind != KindLegacyBinary {
		return cmd + spec.QuerySuffix
	}

	return cmd
}

// FrameRequest renders a composed command into on-wire bytes.
func FrameRequest(spec Spec, op Operation, cmd string) []byte {
	wire := spec.RequestPrefix + SentCommand(spec, op, cmd) + spec.RequestTerminator + spec.SessionClose

	return []byte(wire)
}
