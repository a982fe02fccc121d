package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/vitwit/tokenpay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseConfig parses and validates a Config from JSON
func ParseConfig(data []byte) (*types.Config, error) {
	var cfg types.Config

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
			Err:     err,
		}
	}

	return finishConfig(&cfg)
}

// ParseTOMLConfig parses and validates a Config from TOML
func ParseTOMLConfig(data []byte) (*types.Config, error) {
	var cfg types.Config

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
			Err:     err,
		}
	}

	return finishConfig(&cfg)
}

// LoadConfigFile reads a .json or .toml config file.
func LoadConfigFile(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to read config %s: %v", path, err),
			Err:     err,
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOMLConfig(data)
	case ".json", "":
		return ParseConfig(data)
	default:
		return nil, &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("unsupported config format: %s", filepath.Ext(path)),
		}
	}
}

// ValidateConfig runs struct tag validation and the semantic checks that
// tags cannot express.
func ValidateConfig(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
			Err:     err,
		}
	}

	if _, err := ParseChainID(cfg.ChainIDHex); err != nil {
		return &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid chainIdHex %q: %v", cfg.ChainIDHex, err),
			Err:     err,
		}
	}

	amount, err := ParseAmountWithDecimals(cfg.PaymentAmount, cfg.TokenDecimals)
	if err != nil {
		return &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid paymentAmount %q: %v", cfg.PaymentAmount, err),
			Err:     err,
		}
	}
	if amount.Sign() <= 0 {
		return &types.PaymentError{
			Code:    types.ErrConfigError,
			Message: "paymentAmount must be greater than 0",
		}
	}

	return nil
}

func finishConfig(cfg *types.Config) (*types.Config, error) {
	cfg.ApplyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
