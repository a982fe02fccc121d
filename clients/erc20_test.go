package clients_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/types"
)

var usdtBSC = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")

type callerFunc func(ctx context.Context, msg types.CallMsg) ([]byte, error)

func (f callerFunc) Call(ctx context.Context, msg types.CallMsg) ([]byte, error) {
	return f(ctx, msg)
}

func uint256Word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func TestTokenClient_BalanceOf(t *testing.T) {
	owner := common.HexToAddress("0xAbC0000000000000000000000000000000000001")
	want, _ := new(big.Int).SetString("100000000000000000", 10)

	var seen types.CallMsg
	token, err := clients.NewTokenClient(usdtBSC, callerFunc(func(_ context.Context, msg types.CallMsg) ([]byte, error) {
		seen = msg
		return uint256Word(want), nil
	}))
	require.NoError(t, err)

	got, err := token.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 0, want.Cmp(got))

	assert.Equal(t, usdtBSC.Hex(), seen.To)
	require.Len(t, seen.Data, 4+32)
	assert.Equal(t, "0x70a08231", hexutil.Encode(seen.Data[:4]))
	assert.Equal(t, owner, common.BytesToAddress(seen.Data[4:]))
}

func TestTokenClient_BalanceOfErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller callerFunc
	}{
		{
			name: "call fails",
			caller: func(context.Context, types.CallMsg) ([]byte, error) {
				return nil, errors.New("execution reverted")
			},
		},
		{
			name: "empty result",
			caller: func(context.Context, types.CallMsg) ([]byte, error) {
				return []byte{}, nil
			},
		},
		{
			name: "short result",
			caller: func(context.Context, types.CallMsg) ([]byte, error) {
				return []byte{0x01, 0x02}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := clients.NewTokenClient(usdtBSC, tt.caller)
			require.NoError(t, err)

			bal, err := token.BalanceOf(context.Background(), common.Address{})
			assert.Error(t, err)
			assert.Nil(t, bal)
		})
	}
}

func TestTokenClient_EncodeTransfer(t *testing.T) {
	token, err := clients.NewTokenClient(usdtBSC, nil)
	require.NoError(t, err)

	merchant := common.HexToAddress("0x44d071d0de1f5fa315bd00b8750f86d75822b7c4")
	amount, _ := new(big.Int).SetString("100000000000000000", 10)

	data, err := token.EncodeTransfer(merchant, amount)
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))

	addressTy, _ := abi.NewType("address", "", nil)
	uintTy, _ := abi.NewType("uint256", "", nil)
	values, err := abi.Arguments{{Type: addressTy}, {Type: uintTy}}.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, merchant, values[0])
	assert.Equal(t, 0, amount.Cmp(values[1].(*big.Int)))
}

func TestTokenClient_EncodeTransferRejectsNonPositive(t *testing.T) {
	token, err := clients.NewTokenClient(usdtBSC, nil)
	require.NoError(t, err)

	_, err = token.EncodeTransfer(common.Address{}, big.NewInt(0))
	assert.Error(t, err)
	_, err = token.EncodeTransfer(common.Address{}, nil)
	assert.Error(t, err)
}

func TestNewTokenClient_ZeroAddress(t *testing.T) {
	_, err := clients.NewTokenClient(common.Address{}, nil)
	assert.Error(t, err)
}
