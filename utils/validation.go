package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ParseAmountWithDecimals converts a human readable amount to the token's
// smallest unit. Amounts with more fractional digits than decimals are
// rejected instead of truncated.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("decimals cannot be negative")
	}

	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}

// ParseChainID accepts "0x38" or "56" style chain ids.
func ParseChainID(chainID string) (*big.Int, error) {
	s := strings.TrimSpace(chainID)
	if s == "" {
		return nil, fmt.Errorf("chain id cannot be empty")
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	id, ok := new(big.Int).SetString(s, base)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", chainID)
	}
	return id, nil
}

// SameChain compares two chain ids numerically, regardless of encoding.
func SameChain(a, b string) bool {
	x, err := ParseChainID(a)
	if err != nil {
		return false
	}
	y, err := ParseChainID(b)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// ValidateAddress checks if a string is a valid Ethereum address
func ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

// ShortenAddress renders 0x1234...abcd for status lines.
func ShortenAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
