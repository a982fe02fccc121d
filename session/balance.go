package session

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/utils"
)

// BalanceCheck is the result of comparing a wallet's token balance with the
// payment amount. Amounts are in the token's smallest unit.
type BalanceCheck struct {
	Sufficient   bool     `json:"sufficient"`
	Balance      *big.Int `json:"balance"`
	Required     *big.Int `json:"required"`
	HumanBalance string   `json:"humanBalance"`
}

// IsSufficient reports balance >= required. A nil balance is never sufficient.
func IsSufficient(balance, required *big.Int) bool {
	if balance == nil || required == nil {
		return false
	}
	return balance.Cmp(required) >= 0
}

// CheckSufficientBalance reads the token balance of address at the latest
// block. Query failures are returned as ErrBalanceQuery, never as a zero
// balance.
func (m *Machine) CheckSufficientBalance(ctx context.Context, address string) (*BalanceCheck, error) {
	if m.wallet == nil {
		return nil, types.NewPaymentError(types.ErrNoProvider, msgNoProvider, nil)
	}
	if !utils.ValidateAddress(address) {
		return nil, types.NewPaymentError(
			types.ErrBalanceQuery,
			fmt.Sprintf("Invalid wallet address %q.", address),
			nil,
		)
	}

	balance, err := m.token.BalanceOf(ctx, common.HexToAddress(address))
	if err != nil {
		fallback := fmt.Sprintf("Could not read %s balance.", m.cfg.TokenSymbol)
		return nil, types.NewPaymentError(types.ErrBalanceQuery, clients.ExtractUserMessage(err, fallback), err)
	}

	return &BalanceCheck{
		Sufficient:   IsSufficient(balance, m.required),
		Balance:      balance,
		Required:     new(big.Int).Set(m.required),
		HumanBalance: utils.FormatAmountFromBigInt(balance, m.cfg.TokenDecimals),
	}, nil
}
