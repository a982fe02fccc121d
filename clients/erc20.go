package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/tokenpay/types"
)

// Minimal ERC20 interface: balanceOf(address) and transfer(address,uint256).
const erc20ABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "account", "type": "address" }
    ],
    "outputs": [
      { "name": "", "type": "uint256" }
    ]
  },
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [
      { "name": "", "type": "bool" }
    ]
  }
]
`

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	Call(ctx context.Context, msg types.CallMsg) ([]byte, error)
}

type ERC20 interface {
	Address() common.Address
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error)
}

var _ ERC20 = (*TokenClient)(nil)

// TokenClient encodes and decodes calls against a single token contract.
type TokenClient struct {
	address common.Address
	abi     abi.ABI
	caller  ContractCaller
}

func NewTokenClient(token common.Address, caller ContractCaller) (*TokenClient, error) {
	if token == (common.Address{}) {
		return nil, fmt.Errorf("token contract address is not set")
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &TokenClient{
		address: token,
		abi:     parsed,
		caller:  caller,
	}, nil
}

func (t *TokenClient) Address() common.Address {
	return t.address
}

// BalanceOf returns the raw token balance of owner.
func (t *TokenClient) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := t.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	out, err := t.caller.Call(ctx, types.CallMsg{
		To:   t.address.Hex(),
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf returned no data (is %s a token contract?)", t.address.Hex())
	}

	values, err := t.abi.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf result length %d", len(values))
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}

// EncodeTransfer returns calldata for transfer(to, amount).
func (t *TokenClient) EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}

	data, err := t.abi.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return data, nil
}
