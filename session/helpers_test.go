package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/session"
	"github.com/vitwit/tokenpay/types"
)

const (
	payer    = "0xAbC0000000000000000000000000000000000001"
	payerTwo = "0xAbC0000000000000000000000000000000000002"
	txHash   = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

// fakeWallet plays both the wallet and the chain behind it.
type fakeWallet struct {
	mu sync.Mutex

	accounts   []string
	chainID    string
	balance    *big.Int
	balanceErr error

	requestErr    error
	switchErr     error
	switchApplies bool
	addErr        error
	sendErr       error

	receiptPending bool
	receiptStatus  uint64
	onSend         func()

	added     []types.AddChainParams
	sent      []types.TxRequest
	calls     map[string]int
	listeners map[string][]func(json.RawMessage)
}

func newFakeWallet(balance *big.Int) *fakeWallet {
	return &fakeWallet{
		accounts:      []string{payer},
		chainID:       "0x38",
		balance:       balance,
		receiptStatus: types.ReceiptStatusSuccessful,
		calls:         make(map[string]int),
		listeners:     make(map[string][]func(json.RawMessage)),
	}
}

func (f *fakeWallet) Request(_ context.Context, args clients.RequestArguments) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[args.Method]++

	switch args.Method {
	case clients.MethodRequestAccounts:
		if f.requestErr != nil {
			return nil, f.requestErr
		}
		return json.Marshal(f.accounts)

	case clients.MethodAccounts:
		return json.Marshal(f.accounts)

	case clients.MethodChainID:
		return json.Marshal(f.chainID)

	case clients.MethodSwitchChain:
		target := args.Params[0].(map[string]string)["chainId"]
		if f.switchErr != nil {
			if f.switchApplies {
				f.chainID = target
			}
			return nil, f.switchErr
		}
		f.chainID = target
		return json.RawMessage("null"), nil

	case clients.MethodAddChain:
		params := args.Params[0].(types.AddChainParams)
		f.added = append(f.added, params)
		if f.addErr != nil {
			return nil, f.addErr
		}
		f.chainID = params.ChainID
		return json.RawMessage("null"), nil

	case clients.MethodCall:
		if f.balanceErr != nil {
			return nil, f.balanceErr
		}
		return json.Marshal(hexutil.Encode(common.LeftPadBytes(f.balance.Bytes(), 32)))

	case clients.MethodSendTransaction:
		f.sent = append(f.sent, args.Params[0].(types.TxRequest))
		if f.sendErr != nil {
			return nil, f.sendErr
		}
		if f.onSend != nil {
			f.onSend()
		}
		return json.Marshal(txHash)

	case clients.MethodGetReceipt:
		if f.receiptPending {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(map[string]string{
			"transactionHash": txHash,
			"blockNumber":     "0xa",
			"status":          hexutil.EncodeUint64(f.receiptStatus),
		})

	case clients.MethodBlockNumber:
		return json.Marshal("0xa")
	}

	return nil, &clients.RPCError{Code: clients.CodeUnsupportedMethod, Message: args.Method + " not supported"}
}

func (f *fakeWallet) On(event string, listener func(json.RawMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[event] = append(f.listeners[event], listener)
	idx := len(f.listeners[event]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners[event][idx] = nil
	}
}

func (f *fakeWallet) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	f.mu.Lock()
	listeners := append([]func(json.RawMessage){}, f.listeners[event]...)
	f.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(data)
		}
	}
}

func (f *fakeWallet) set(fn func(f *fakeWallet)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeWallet) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func required() *big.Int {
	v, _ := new(big.Int).SetString("100000000000000000", 10)
	return v
}

func minus(v *big.Int, n int64) *big.Int {
	return new(big.Int).Sub(v, big.NewInt(n))
}

func newMachine(t *testing.T, provider clients.Provider, opts ...session.Option) *session.Machine {
	t.Helper()
	m, err := session.New(types.DefaultConfig(), provider, opts...)
	require.NoError(t, err)
	return m
}

func connected(t *testing.T, wallet *fakeWallet, opts ...session.Option) *session.Machine {
	t.Helper()
	m := newMachine(t, wallet, opts...)
	require.NoError(t, m.Connect(context.Background()))
	return m
}

var errBoom = errors.New("boom")

// revertPayload is the quoted Error(string) payload a node attaches to a
// reverted call.
func revertPayload(t *testing.T, reason string) json.RawMessage {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)

	data, err := json.Marshal(hexutil.Encode(append(hexutil.MustDecode("0x08c379a0"), packed...)))
	require.NoError(t, err)
	return data
}
