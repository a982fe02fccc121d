package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountWithDecimals(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "tenth with 18 decimals", amount: "0.1", decimals: 18, want: "100000000000000000"},
		{name: "whole amount with 6 decimals", amount: "25", decimals: 6, want: "25000000"},
		{name: "exact precision", amount: "1.234567", decimals: 6, want: "1234567"},
		{name: "zero decimals", amount: "7", decimals: 0, want: "7"},
		{name: "too many fractional digits", amount: "0.1234567", decimals: 6, wantErr: true},
		{name: "negative", amount: "-1", decimals: 18, wantErr: true},
		{name: "empty", amount: "", decimals: 18, wantErr: true},
		{name: "garbage", amount: "abc", decimals: 18, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmountWithDecimals(tt.amount, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFormatAmountFromBigInt(t *testing.T) {
	v, _ := new(big.Int).SetString("100000000000000000", 10)
	assert.Equal(t, "0.1", FormatAmountFromBigInt(v, 18))

	v, _ = new(big.Int).SetString("99999999999999999", 10)
	assert.Equal(t, "0.099999999999999999", FormatAmountFromBigInt(v, 18))

	assert.Equal(t, "12.5", FormatAmountFromBigInt(big.NewInt(12500000), 6))
	assert.Equal(t, "0", FormatAmountFromBigInt(nil, 6))
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("0x38")
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())

	id, err = ParseChainID("56")
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())

	_, err = ParseChainID("")
	assert.Error(t, err)
	_, err = ParseChainID("0xzz")
	assert.Error(t, err)
	_, err = ParseChainID("0x0")
	assert.Error(t, err)
}

func TestSameChain(t *testing.T) {
	assert.True(t, SameChain("0x38", "56"))
	assert.True(t, SameChain("0x38", "0x038"))
	assert.False(t, SameChain("0x1", "0x38"))
	assert.False(t, SameChain("bogus", "0x38"))
}

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "0x44d0...c7c4", ShortenAddress("0x44d071d0de1f5fa315bd00b8750f86d75822b7c4"))
	assert.Equal(t, "0xabc", ShortenAddress("0xabc"))
}
