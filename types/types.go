package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultTokenSymbol        = "USDT"
	DefaultSuccessRedirectURL = "./thankyou.html"
)

// NativeCurrency describes the gas currency of the target chain as expected
// by wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name" toml:"name" validate:"required"`
	Symbol   string `json:"symbol" toml:"symbol" validate:"required"`
	Decimals int    `json:"decimals" toml:"decimals" validate:"gte=0,lte=36"`
}

// Config is the static payment configuration. It is loaded once and treated
// as read-only by every component.
type Config struct {
	// Address receiving the payment. Checked at connect time, not at load time,
	// so a widget can start before the merchant is configured.
	MerchantAddress string `json:"merchantAddress" toml:"merchantAddress" validate:"omitempty,eth_addr"`

	// Target chain, hex encoded (e.g. "0x38").
	ChainIDHex        string         `json:"chainIdHex" toml:"chainIdHex" validate:"required"`
	ChainName         string         `json:"chainName" toml:"chainName" validate:"required"`
	RPCUrls           []string       `json:"rpcUrls" toml:"rpcUrls" validate:"required,min=1,dive,url"`
	BlockExplorerUrls []string       `json:"blockExplorerUrls" toml:"blockExplorerUrls" validate:"dive,url"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" toml:"nativeCurrency"`

	TokenContractAddress string `json:"tokenContractAddress" toml:"tokenContractAddress" validate:"required,eth_addr"`
	TokenDecimals        int    `json:"tokenDecimals" toml:"tokenDecimals" validate:"gte=0,lte=77"`
	TokenSymbol          string `json:"tokenSymbol,omitempty" toml:"tokenSymbol"`

	// Human readable amount, e.g. "0.1". Scaled by TokenDecimals before use.
	PaymentAmount string `json:"paymentAmount" toml:"paymentAmount" validate:"required,numeric"`

	SuccessRedirectURL string `json:"successRedirectUrl,omitempty" toml:"successRedirectUrl"`
}

// DefaultConfig returns the BNB Smart Chain / USDT setup.
func DefaultConfig() *Config {
	return &Config{
		MerchantAddress:   "0x44d071d0de1f5fa315bd00b8750f86d75822b7c4",
		ChainIDHex:        "0x38",
		ChainName:         "BNB Smart Chain",
		RPCUrls:           []string{"https://bsc-dataseed.binance.org/"},
		BlockExplorerUrls: []string{"https://bscscan.com"},
		NativeCurrency: NativeCurrency{
			Name:     "BNB",
			Symbol:   "BNB",
			Decimals: 18,
		},
		TokenContractAddress: "0x55d398326f99059fF775485246999027B3197955",
		TokenDecimals:        18,
		TokenSymbol:          DefaultTokenSymbol,
		PaymentAmount:        "0.1",
		SuccessRedirectURL:   DefaultSuccessRedirectURL,
	}
}

// ApplyDefaults fills optional fields left empty.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.TokenSymbol) == "" {
		c.TokenSymbol = DefaultTokenSymbol
	}
	if strings.TrimSpace(c.SuccessRedirectURL) == "" {
		c.SuccessRedirectURL = DefaultSuccessRedirectURL
	}
	if c.BlockExplorerUrls == nil {
		c.BlockExplorerUrls = []string{}
	}
}

// MerchantConfigured reports whether a usable, non-zero merchant address is set.
func (c *Config) MerchantConfigured() bool {
	addr := strings.TrimSpace(c.MerchantAddress)
	if addr == "" || !common.IsHexAddress(addr) {
		return false
	}
	return common.HexToAddress(addr) != (common.Address{})
}

// Merchant returns the merchant address. Call MerchantConfigured first.
func (c *Config) Merchant() common.Address {
	return common.HexToAddress(c.MerchantAddress)
}

// TokenContract returns the token contract address.
func (c *Config) TokenContract() common.Address {
	return common.HexToAddress(c.TokenContractAddress)
}

// AddChainParams is the chain descriptor passed to wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCUrls           []string       `json:"rpcUrls"`
	BlockExplorerUrls []string       `json:"blockExplorerUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
}

// ChainDescriptor builds the wallet_addEthereumChain descriptor from the config.
func (c *Config) ChainDescriptor() AddChainParams {
	return AddChainParams{
		ChainID:           c.ChainIDHex,
		ChainName:         c.ChainName,
		RPCUrls:           append([]string(nil), c.RPCUrls...),
		BlockExplorerUrls: append([]string(nil), c.BlockExplorerUrls...),
		NativeCurrency:    c.NativeCurrency,
	}
}

// Session is the connected wallet state. A zero Session means disconnected.
type Session struct {
	Address              string   `json:"address,omitempty"`
	IsConnected          bool     `json:"isConnected"`
	IsOnTargetChain      bool     `json:"isOnTargetChain"`
	TokenBalance         *big.Int `json:"tokenBalance,omitempty"`
	HumanBalance         string   `json:"humanBalance,omitempty"`
	HasSufficientBalance bool     `json:"hasSufficientBalance"`
}

// Clone returns a deep copy safe to hand to callers.
func (s Session) Clone() Session {
	if s.TokenBalance != nil {
		s.TokenBalance = new(big.Int).Set(s.TokenBalance)
	}
	return s
}
