package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/types"
)

var _ ContractCaller = (*WalletSession)(nil)

// WalletSession wraps a Provider with typed calls for the methods the
// payment flow needs.
type WalletSession struct {
	provider Provider
	logger   logger.Logger
}

func NewWalletSession(provider Provider, log logger.Logger) *WalletSession {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &WalletSession{
		provider: provider,
		logger:   log,
	}
}

// RequestAccounts asks the wallet for account access. This may prompt the user.
func (w *WalletSession) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.request(ctx, MethodRequestAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns the already authorized accounts without prompting.
func (w *WalletSession) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.request(ctx, MethodAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the wallet's current chain id as reported by the provider.
func (w *WalletSession) ChainID(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := w.request(ctx, MethodChainID, nil, &raw); err != nil {
		return "", err
	}
	return decodeChainID(raw)
}

// SwitchChain asks the wallet to switch to chainID.
func (w *WalletSession) SwitchChain(ctx context.Context, chainID string) error {
	params := []any{map[string]string{"chainId": chainID}}
	return w.request(ctx, MethodSwitchChain, params, nil)
}

// AddChain asks the wallet to add (and usually switch to) a chain.
func (w *WalletSession) AddChain(ctx context.Context, chain types.AddChainParams) error {
	return w.request(ctx, MethodAddChain, []any{chain}, nil)
}

// SendTransaction submits tx through the wallet and returns its hash.
func (w *WalletSession) SendTransaction(ctx context.Context, tx types.TxRequest) (common.Hash, error) {
	var hash string
	if err := w.request(ctx, MethodSendTransaction, []any{tx}, &hash); err != nil {
		return common.Hash{}, err
	}

	b, err := hexutil.Decode(hash)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q returned by provider", hash)
	}
	return common.BytesToHash(b), nil
}

// Call performs a read-only eth_call against the latest block.
func (w *WalletSession) Call(ctx context.Context, msg types.CallMsg) ([]byte, error) {
	var out hexutil.Bytes
	if err := w.request(ctx, MethodCall, []any{msg, "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransactionReceipt returns nil without error while the transaction is pending.
func (w *WalletSession) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := w.request(ctx, MethodGetReceipt, []any{hash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// BlockNumber returns the latest block number.
func (w *WalletSession) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := w.request(ctx, MethodBlockNumber, nil, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// OnAccountsChanged subscribes to accountsChanged events.
func (w *WalletSession) OnAccountsChanged(fn func(accounts []string)) func() {
	return w.provider.On(EventAccountsChanged, func(data json.RawMessage) {
		var accounts []string
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &accounts); err != nil {
				w.logger.Warn("ignoring malformed accountsChanged event", map[string]any{
					"error": err.Error(),
				})
				return
			}
		}
		fn(accounts)
	})
}

// OnChainChanged subscribes to chainChanged events.
func (w *WalletSession) OnChainChanged(fn func(chainID string)) func() {
	return w.provider.On(EventChainChanged, func(data json.RawMessage) {
		chainID, err := decodeChainID(data)
		if err != nil {
			w.logger.Warn("ignoring malformed chainChanged event", map[string]any{
				"error": err.Error(),
			})
			return
		}
		fn(chainID)
	})
}

func (w *WalletSession) request(ctx context.Context, method string, params []any, out any) error {
	raw, err := w.provider.Request(ctx, RequestArguments{Method: method, Params: params})
	if err != nil {
		w.logger.Debug("provider request failed", map[string]any{
			"method": method,
			"error":  err.Error(),
		})
		return fmt.Errorf("%s: %w", method, err)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

// decodeChainID accepts the hex string form and, for lenient providers,
// a plain JSON number.
func decodeChainID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("empty chain id")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errors.New("empty chain id")
		}
		return s, nil
	}

	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid chain id %s", string(raw))
	}
	return strconv.FormatUint(n, 10), nil
}
