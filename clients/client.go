package clients

import (
	"context"
	"encoding/json"
)

// Wallet RPC methods used by the payment flow.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSendTransaction = "eth_sendTransaction"
	MethodCall            = "eth_call"
	MethodGetReceipt      = "eth_getTransactionReceipt"
	MethodBlockNumber     = "eth_blockNumber"
)

// Provider events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// RequestArguments mirrors the EIP-1193 request object.
type RequestArguments struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// Provider is an EIP-1193 style wallet provider.
type Provider interface {
	// Request sends a JSON-RPC request and returns the raw result.
	// Provider-reported failures should be returned as *RPCError.
	Request(ctx context.Context, args RequestArguments) (json.RawMessage, error)

	// On subscribes to a provider event and returns a function that removes
	// the subscription.
	On(event string, listener func(data json.RawMessage)) (unsubscribe func())
}
