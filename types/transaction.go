package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionStatus is the lifecycle of a submitted payment transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

// TransactionRecord tracks a single pay attempt. It is never persisted.
type TransactionRecord struct {
	Hash          string            `json:"hash"`
	Confirmations uint64            `json:"confirmations"`
	Status        TransactionStatus `json:"status"`
}

// TxRequest is the eth_sendTransaction parameter object.
type TxRequest struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Data  hexutil.Bytes `json:"data"`
	Value *hexutil.Big  `json:"value"`
}

// CallMsg is the eth_call parameter object.
type CallMsg struct {
	To   string        `json:"to"`
	Data hexutil.Bytes `json:"data"`
}

// Receipt holds the receipt fields the payment flow relies on.
type Receipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	Status          hexutil.Uint64 `json:"status"`
}

const ReceiptStatusSuccessful = 1

// Successful reports whether the receipt carries status 1.
func (r *Receipt) Successful() bool {
	return r != nil && uint64(r.Status) == ReceiptStatusSuccessful
}
