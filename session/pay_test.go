package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/session"
	"github.com/vitwit/tokenpay/types"
)

func fastConfirm() []session.Option {
	return []session.Option{
		session.WithConfirmationTimeout(50 * time.Millisecond),
		session.WithPollInterval(5 * time.Millisecond),
	}
}

func TestPay_Success(t *testing.T) {
	wallet := newFakeWallet(required())
	m := connected(t, wallet, fastConfirm()...)

	var messages []string
	m.OnChange(func(v session.View) { messages = append(messages, v.Message.Text) })

	require.NoError(t, m.Pay(context.Background()))

	require.Len(t, wallet.sent, 1)
	tx := wallet.sent[0]
	assert.Equal(t, payer, tx.From)
	assert.Equal(t, "0x55d398326f99059fF775485246999027B3197955", tx.To)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(tx.Data[:4]))
	assert.Equal(t, "0x0", tx.Value.String())

	view := m.Snapshot()
	assert.Equal(t, session.StatePaid, view.State)
	assert.Equal(t, "./thankyou.html", view.RedirectURL)
	assert.Equal(t, session.Message{Text: "Payment confirmed. Redirecting...", Kind: session.KindSuccess}, view.Message)
	require.NotNil(t, view.Transaction)
	assert.Equal(t, &types.TransactionRecord{Hash: txHash, Confirmations: 1, Status: types.TransactionConfirmed}, view.Transaction)

	assert.Contains(t, messages, "Sending transaction... Please confirm in wallet.")
	assert.Contains(t, messages, "Transaction sent: "+txHash+". Waiting for confirmation...")
}

func TestPay_OutsideConnectedSufficient(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		wallet := newFakeWallet(required())
		m := newMachine(t, wallet)

		err := m.Pay(context.Background())
		assert.True(t, types.IsCode(err, types.ErrInvalidState))
		assert.EqualError(t, err, "Connect wallet first.")
		assert.Equal(t, session.StateDisconnected, m.Snapshot().State)
	})

	t.Run("insufficient", func(t *testing.T) {
		wallet := newFakeWallet(minus(required(), 1))
		m := connected(t, wallet)

		err := m.Pay(context.Background())
		assert.True(t, types.IsCode(err, types.ErrInsufficientBalance))
		assert.Equal(t, session.StateConnectedInsufficient, m.Snapshot().State)
		assert.Empty(t, wallet.sent)
	})

	t.Run("already paid", func(t *testing.T) {
		wallet := newFakeWallet(required())
		m := connected(t, wallet, fastConfirm()...)
		require.NoError(t, m.Pay(context.Background()))

		err := m.Pay(context.Background())
		assert.True(t, types.IsCode(err, types.ErrInvalidState))
		assert.Len(t, wallet.sent, 1)
	})
}

func TestPay_StaleBalance(t *testing.T) {
	wallet := newFakeWallet(required())
	m := connected(t, wallet)

	wallet.set(func(f *fakeWallet) { f.balance = minus(required(), 1) })

	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrInsufficientBalance))
	assert.Empty(t, wallet.sent)

	view := m.Snapshot()
	assert.Equal(t, session.StateConnectedInsufficient, view.State)
	assert.False(t, view.Session.HasSufficientBalance)
	assert.Equal(t, session.KindError, view.Message.Kind)
}

func TestPay_ConfirmationTimeout(t *testing.T) {
	wallet := newFakeWallet(required())
	wallet.receiptPending = true
	m := connected(t, wallet, fastConfirm()...)

	calls := wallet.count(clients.MethodCall)
	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrTransactionTimeout))
	assert.ErrorIs(t, err, clients.ErrConfirmationTimeout)

	view := m.Snapshot()
	assert.Equal(t, session.StateConnectedSufficient, view.State)
	assert.True(t, view.Session.IsConnected)
	require.NotNil(t, view.Transaction)
	assert.Equal(t, types.TransactionFailed, view.Transaction.Status)
	// once before submitting, once after the failure
	assert.Equal(t, calls+2, wallet.count(clients.MethodCall))
}

func TestPay_TimeoutRecheckSeesLowerBalance(t *testing.T) {
	wallet := newFakeWallet(required())
	wallet.receiptPending = true
	m := connected(t, wallet, fastConfirm()...)

	m.OnChange(func(v session.View) {
		if v.Transaction != nil && v.Transaction.Status == types.TransactionPending {
			wallet.set(func(f *fakeWallet) { f.balance = minus(required(), 1) })
		}
	})

	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrTransactionTimeout))
	assert.Equal(t, session.StateConnectedInsufficient, m.Snapshot().State)
}

func TestPay_Reverted(t *testing.T) {
	wallet := newFakeWallet(required())
	wallet.receiptStatus = 0
	m := connected(t, wallet, fastConfirm()...)

	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrTransactionFailed))

	view := m.Snapshot()
	assert.Equal(t, session.StateConnectedSufficient, view.State)
	assert.Equal(t, session.Message{Text: "Transaction failed or was not confirmed.", Kind: session.KindError}, view.Message)
	assert.Empty(t, view.RedirectURL)
}

func TestPay_SendFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantText string
	}{
		{
			name:     "user rejects",
			err:      &clients.RPCError{Code: clients.CodeUserRejected, Message: "User denied transaction signature."},
			wantCode: types.ErrUserRejected,
			wantText: "User denied transaction signature.",
		},
		{
			name:     "revert reason",
			err:      &clients.RPCError{Code: 3, Message: "execution reverted", Data: revertPayload(t, "BEP20: transfer amount exceeds balance")},
			wantCode: types.ErrUnknown,
			wantText: "BEP20: transfer amount exceeds balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := newFakeWallet(required())
			wallet.sendErr = tt.err
			m := connected(t, wallet, fastConfirm()...)

			err := m.Pay(context.Background())
			assert.Equal(t, tt.wantCode, types.CodeOf(err))

			view := m.Snapshot()
			assert.Equal(t, session.StateConnectedSufficient, view.State)
			assert.Equal(t, session.Message{Text: tt.wantText, Kind: session.KindError}, view.Message)
			assert.Nil(t, view.Transaction)
		})
	}
}

func TestPay_RecheckFailureKeepsPreviousState(t *testing.T) {
	wallet := newFakeWallet(required())
	m := connected(t, wallet, fastConfirm()...)

	wallet.set(func(f *fakeWallet) { f.balanceErr = errBoom })

	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrBalanceQuery))

	view := m.Snapshot()
	assert.Equal(t, session.StateConnectedSufficient, view.State)
	assert.Equal(t, payer, view.Session.Address)
	assert.Empty(t, wallet.sent)
}

func TestPay_CallerCancelAfterSubmitStillConfirms(t *testing.T) {
	wallet := newFakeWallet(required())
	m := connected(t, wallet,
		session.WithConfirmationTimeout(2*time.Second),
		session.WithPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wallet.set(func(f *fakeWallet) {
		f.receiptPending = true
		f.onSend = func() {
			cancel()
			go func() {
				time.Sleep(30 * time.Millisecond)
				wallet.set(func(f *fakeWallet) { f.receiptPending = false })
			}()
		}
	})

	require.NoError(t, m.Pay(ctx))

	view := m.Snapshot()
	assert.Equal(t, session.StatePaid, view.State)
	require.NotNil(t, view.Transaction)
	assert.Equal(t, types.TransactionConfirmed, view.Transaction.Status)
	assert.Len(t, wallet.sent, 1)
}

func TestPay_AfterPaid(t *testing.T) {
	wallet := newFakeWallet(required())
	m := connected(t, wallet, fastConfirm()...)
	require.NoError(t, m.Pay(context.Background()))

	err := m.Pay(context.Background())
	assert.True(t, types.IsCode(err, types.ErrInvalidState))

	view := m.Snapshot()
	assert.Equal(t, session.StatePaid, view.State)
	assert.Equal(t, session.Message{Text: "A payment is already in progress or complete.", Kind: session.KindError}, view.Message)
	assert.Len(t, wallet.sent, 1)
}
