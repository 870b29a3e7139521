// Package session runs blocking request/response transactions against one
// instrument transport.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/transport"
)

// DefaultTimeout bounds one full round trip when the caller does not
// configure one.
const DefaultTimeout = 2 * time.Second

// state tracks one transaction through its lifecycle. Every Execute call is
// a fresh run; no state survives past done/failed.
type state int

const (
	stateIdle state = iota
	stateSent
	stateAwaitingReply
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSent:
		return "sent"
	case stateAwaitingReply:
		return "awaiting-reply"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// Engine orchestrates blocking transactions: compose, write once, read
// once, parse. All configuration is explicit and fixed at construction; the
// engine owns its transport and must not be shared across concurrent
// callers.
type Engine struct {
	logger  *slog.Logger
	tr      transport.Transport
	spec    protocol.Spec
	rec     capability.Record
	timeout time.Duration
}

type Option func(*Engine)

func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(logger *slog.Logger, tr transport.Transport, spec protocol.Spec, rec capability.Record, opts ...Option) *Engine {
	e := &Engine{
		logger:  logger.With("dialect", spec.Name),
		tr:      tr,
		spec:    spec,
		rec:     rec,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) Spec() protocol.Spec {
	return e.spec
}

func (e *Engine) Capabilities() capability.Record {
	return e.rec
}

// Execute performs one transaction. The transport is written to exactly
// once and read from exactly once; connect-per-call dialects additionally
// open and close the transport around the exchange. Timeout, framing, echo
// and parse failures are reported to the caller, never retried here.
func (e *Engine) Execute(ctx context.Context, op protocol.Operation) (protocol.Reply, error) {
	st := stateIdle

	cmd, err := protocol.Compose(e.spec, e.rec, op)
	if err != nil {
		return e.fail(&st, fmt.Errorf("compose: %w", err))
	}
	sent := protocol.SentCommand(e.spec, op, cmd)
	wire := protocol.FrameRequest(e.spec, op, cmd)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.spec.ConnectPerCall {
		if err := e.tr.Connect(ctx); err != nil {
			return e.fail(&st, fmt.Errorf("connect: %w", err))
		}
		defer func() { _ = e.tr.Close() }()
	}

	e.logger.Debug("sending operation", "command", sent)
	if err := e.tr.Write(ctx, wire); err != nil {
		return e.fail(&st, fmt.Errorf("write %q: %w", sent, err))
	}
	e.transition(&st, stateSent)

	e.transition(&st, stateAwaitingReply)
	raw, err := e.tr.ReadUntil(ctx, []byte(e.spec.ReplyTerminator), e.spec.MaxReplySize)
	if err != nil {
		return e.fail(&st, fmt.Errorf("read reply to %q: %w", sent, err))
	}
	e.logger.Debug("received reply", "raw", string(raw))

	rep, err := protocol.Parse(e.spec, raw, sent, op.Arity)
	if err != nil {
		return e.fail(&st, err)
	}

	// Set-style operations succeed only when the dialect's distinguished
	// success token comes back.
	if e.spec.SuccessToken != "" && (op.Kind == protocol.OpSet || op.Kind == protocol.OpRaw) {
		rep.Success = rep.Success && lastFieldIs(rep, e.spec.SuccessToken)
	}

	e.transition(&st, stateDone)

	return rep, nil
}

// Query performs a read of a named mnemonic, e.g. "MN".
func (e *Engine) Query(ctx context.Context, mnemonic string) (protocol.Reply, error) {
	return e.Execute(ctx, protocol.Operation{Kind: protocol.OpQuery, Mnemonic: mnemonic, Arity: 1})
}

// Command sends a raw command with optional integer arguments appended and
// reports whether the device accepted it.
func (e *Engine) Command(ctx context.Context, cmd string, args ...int) (bool, error) {
	full := cmd
	for _, a := range args {
		full += strconv.Itoa(a)
	}

	rep, err := e.Execute(ctx, protocol.Operation{Kind: protocol.OpRaw, Mnemonic: full})
	if err != nil {
		return false, err
	}

	return rep.Success, nil
}

func (e *Engine) transition(st *state, next state) {
	e.logger.Debug("transaction state", "from", st.String(), "to", next.String())
	*st = next
}

func (e *Engine) fail(st *state, err error) (protocol.Reply, error) {
	e.transition(st, stateFailed)

	return protocol.Reply{}, err
}

func lastFieldIs(rep protocol.Reply, token string) bool {
	if len(rep.Fields) == 0 {
		return false
	}

	return rep.Fields[len(rep.Fields)-1].String() == token
}
