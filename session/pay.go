package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/types"
)

const (
	msgConnectFirst = "Connect wallet first."
	msgPayBusy      = "A payment is already in progress or complete."
	msgSending      = "Sending transaction... Please confirm in wallet."
	msgNotConfirmed = "Transaction failed or was not confirmed."
	msgPaid         = "Payment confirmed. Redirecting..."
)

// Pay transfers the configured amount to the merchant and waits for one
// confirmation. It is only valid from StateConnectedSufficient. On failure
// the balance is checked again and the machine returns to the matching
// connected substate.
func (m *Machine) Pay(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	view := m.Snapshot()
	switch view.State {
	case StateConnectedSufficient:
	case StateConnectedInsufficient:
		err := types.NewPaymentError(types.ErrInsufficientBalance, m.insufficientMessage(view.Session.HumanBalance), nil)
		m.setMessage(Message{Text: err.Message, Kind: KindError})
		return err
	case StatePaying, StatePaid:
		err := types.NewPaymentError(types.ErrInvalidState, msgPayBusy, nil)
		m.setMessage(Message{Text: err.Message, Kind: KindError})
		return err
	default:
		err := types.NewPaymentError(types.ErrInvalidState, msgConnectFirst, nil)
		m.setMessage(Message{Text: err.Message, Kind: KindError})
		return err
	}

	previous := view.State
	from := view.Session.Address

	m.update(func() {
		m.state = StatePaying
		m.message = Message{Text: msgSending}
		m.tx = nil
	})

	err := m.pay(ctx, from)
	if err == nil {
		var hash string
		m.update(func() {
			m.state = StatePaid
			m.message = Message{Text: msgPaid, Kind: KindSuccess}
			m.redirect = m.cfg.SuccessRedirectURL
			if m.tx != nil {
				hash = m.tx.Hash
			}
		})
		m.logger.Info("payment confirmed", map[string]any{"txHash": hash})
		return nil
	}

	payErr := clients.ToPaymentError(err, types.ErrUnknown, m.payFallbackMessage())
	m.metrics.IncCounter("pay_failed", m.labels())
	m.logger.Warn("payment failed", map[string]any{
		"code":  payErr.Code,
		"error": err.Error(),
	})
	m.recoverAfterFailure(context.WithoutCancel(ctx), from, previous, Message{Text: payErr.Message, Kind: KindError})
	return payErr
}

func (m *Machine) pay(ctx context.Context, from string) error {
	check, err := m.CheckSufficientBalance(ctx, from)
	if err != nil {
		return err
	}
	if !check.Sufficient {
		return types.NewPaymentError(types.ErrInsufficientBalance, m.insufficientMessage(check.HumanBalance), nil)
	}

	data, err := m.token.EncodeTransfer(m.cfg.Merchant(), m.required)
	if err != nil {
		return types.NewPaymentError(types.ErrUnknown, m.payFallbackMessage(), err)
	}

	hash, err := m.wallet.SendTransaction(ctx, types.TxRequest{
		From:  from,
		To:    m.token.Address().Hex(),
		Data:  data,
		Value: (*hexutil.Big)(big.NewInt(0)),
	})
	if err != nil {
		return err
	}

	labels := m.labels()
	m.metrics.IncCounter("pay_submitted", labels)
	m.logger.Info("payment submitted", map[string]any{
		"txHash": hash.Hex(),
		"from":   from,
	})
	m.update(func() {
		m.tx = &types.TransactionRecord{Hash: hash.Hex(), Status: types.TransactionPending}
		m.message = Message{Text: fmt.Sprintf("Transaction sent: %s. Waiting for confirmation...", hash.Hex())}
	})

	// The transfer is on its way; a caller going away must not turn it into a
	// failed payment.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	confirmation, err := m.wallet.WaitForConfirmation(ctx, hash, 1, m.confirmTimeout, m.pollInterval)
	if err != nil {
		if errors.Is(err, clients.ErrConfirmationTimeout) {
			return types.NewPaymentError(
				types.ErrTransactionTimeout,
				fmt.Sprintf("Transaction %s was not confirmed within %s.", hash.Hex(), m.confirmTimeout),
				err,
			)
		}
		return err
	}
	if !confirmation.Receipt.Successful() {
		return types.NewPaymentError(types.ErrTransactionFailed, msgNotConfirmed, nil)
	}

	m.metrics.IncCounter("pay_confirmed", labels)
	m.metrics.ObserveLatency("confirmation", time.Since(start), labels)
	m.update(func() {
		m.tx.Confirmations = confirmation.Confirmations
		m.tx.Status = types.TransactionConfirmed
	})
	return nil
}

// recoverAfterFailure marks the transaction failed and re-evaluates the
// balance. When the balance cannot be read the previous substate is kept.
func (m *Machine) recoverAfterFailure(ctx context.Context, from string, previous State, msg Message) {
	check, err := m.CheckSufficientBalance(ctx, from)
	if err != nil {
		m.logger.Warn("balance re-check after failed payment failed", map[string]any{"error": err.Error()})
	}

	m.update(func() {
		if m.tx != nil {
			m.tx.Status = types.TransactionFailed
		}
		m.message = msg
		if err != nil {
			m.state = previous
			return
		}
		m.applyBalanceLocked(check)
	})
}

func (m *Machine) payFallbackMessage() string {
	return fmt.Sprintf("Payment failed. Please confirm your wallet is on %s and try again.", m.cfg.ChainName)
}
