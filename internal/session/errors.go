package session

import (
	"errors"
	"fmt"

	"github.com/lox/charlie/internal/hand"
	"github.com/lox/charlie/internal/protocol"
)

var (
	ErrNotConnected = errors.New("not connected to a dealer")
	ErrNotInRound   = errors.New("no round in progress")
	ErrInvalidBet   = errors.New("bet must be positive")
	ErrNoHand       = errors.New("hand id required")
	ErrClosed       = errors.New("session closed")
)

// AnomalyKind classifies protocol anomalies
type AnomalyKind string

const (
	AnomalyUnknownHand   AnomalyKind = "unknown_hand"
	AnomalyDuplicateHand AnomalyKind = "duplicate_hand"
	AnomalyOutOfOrder    AnomalyKind = "out_of_order"
	AnomalyUnknownType   AnomalyKind = "unknown_type"
	AnomalyMalformed     AnomalyKind = "malformed"
)

// ProtocolError describes a dealer message that was dropped. It is never
// fatal to the session.
type ProtocolError struct {
	Kind  AnomalyKind
	Type  protocol.MessageType
	Hid   hand.Hid
	State State
	Err   error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol anomaly %s on %q in state %s", e.Kind, e.Type, e.State)
	if !e.Hid.IsZero() {
		msg += " for " + e.Hid.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConnectError is returned when every attempt to reach a dealer failed
type ConnectError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot reach dealer at %s after %d attempt(s): %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
