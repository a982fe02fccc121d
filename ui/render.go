// Package ui renders the payment session for a front end and forwards user
// triggers into the session machine.
package ui

import (
	"github.com/vitwit/tokenpay/session"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/utils"
)

// RedirectDelayMS is how long the success message stays up before the
// front end follows RedirectURL.
const RedirectDelayMS = 700

// Controls is the rendered state of the widget.
type Controls struct {
	WalletStatus      string                   `json:"walletStatus"`
	Connected         bool                     `json:"connected"`
	ConnectEnabled    bool                     `json:"connectEnabled"`
	DisconnectEnabled bool                     `json:"disconnectEnabled"`
	PayEnabled        bool                     `json:"payEnabled"`
	Busy              bool                     `json:"busy"`
	State             session.State            `json:"state"`
	Message           session.Message          `json:"message"`
	Balance           string                   `json:"balance,omitempty"`
	Transaction       *types.TransactionRecord `json:"transaction,omitempty"`
	RedirectURL       string                   `json:"redirectUrl,omitempty"`
	RedirectDelayMS   int                      `json:"redirectDelayMs,omitempty"`
}

// Render maps a session view to control states. While busy every trigger is
// disabled.
func Render(v session.View, busy bool) Controls {
	c := Controls{
		WalletStatus: "Not connected",
		Connected:    v.State.Connected(),
		Busy:         busy,
		State:        v.State,
		Message:      v.Message,
		Transaction:  v.Transaction,
	}

	if c.Connected {
		c.WalletStatus = "Connected: " + utils.ShortenAddress(v.Session.Address)
		c.Balance = v.Session.HumanBalance
	}

	if v.RedirectURL != "" {
		c.RedirectURL = v.RedirectURL
		c.RedirectDelayMS = RedirectDelayMS
	}

	if busy {
		return c
	}

	switch v.State {
	case session.StateDisconnected:
		c.ConnectEnabled = true
	case session.StateConnectedInsufficient:
		c.DisconnectEnabled = true
	case session.StateConnectedSufficient:
		c.DisconnectEnabled = true
		c.PayEnabled = v.Session.HasSufficientBalance
	case session.StatePaid:
		c.DisconnectEnabled = true
	}
	return c
}
