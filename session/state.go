package session

import (
	"fmt"

	"github.com/vitwit/tokenpay/types"
)

// State is the connection state of the payment session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedInsufficient
	StateConnectedSufficient
	StatePaying
	StatePaid
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedInsufficient:
		return "connected_insufficient"
	case StateConnectedSufficient:
		return "connected_sufficient"
	case StatePaying:
		return "paying"
	case StatePaid:
		return "paid"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for c := StateDisconnected; c <= StatePaid; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}

// Connected reports whether a wallet session exists in this state.
func (s State) Connected() bool {
	switch s {
	case StateConnectedInsufficient, StateConnectedSufficient, StatePaying, StatePaid:
		return true
	}
	return false
}

type MessageKind string

const (
	KindNone    MessageKind = ""
	KindSuccess MessageKind = "success"
	KindError   MessageKind = "error"
)

// Message is the status line shown to the user.
type Message struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind,omitempty"`
}

// View is a point-in-time copy of everything the UI needs to render.
type View struct {
	State       State                    `json:"state"`
	Session     types.Session            `json:"session"`
	Message     Message                  `json:"message"`
	Transaction *types.TransactionRecord `json:"transaction,omitempty"`
	RedirectURL string                   `json:"redirectUrl,omitempty"`
}
