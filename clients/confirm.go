package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/tokenpay/types"
)

const (
	DefaultConfirmationTimeout = 120 * time.Second
	DefaultPollInterval        = 2 * time.Second
)

// ErrConfirmationTimeout is returned when no receipt with enough
// confirmations shows up before the deadline.
var ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")

var errReceiptPending = errors.New("receipt pending")

// Confirmation is the outcome of a confirmation wait.
type Confirmation struct {
	Receipt       *types.Receipt
	Confirmations uint64
}

// WaitForConfirmation polls for the receipt of hash until it is included with
// at least confirmations blocks on top (inclusion block counts as one), or
// until timeout elapses. Failed receipts are returned as soon as they appear.
func (w *WalletSession) WaitForConfirmation(
	ctx context.Context,
	hash common.Hash,
	confirmations uint64,
	timeout, pollInterval time.Duration,
) (*Confirmation, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result *Confirmation
	operation := func() error {
		receipt, err := w.TransactionReceipt(waitCtx, hash)
		if err != nil {
			w.logger.Debug("receipt lookup failed, retrying", map[string]any{
				"txHash": hash.Hex(),
				"error":  err.Error(),
			})
			return err
		}
		if receipt == nil || receipt.BlockNumber == nil {
			return errReceiptPending
		}
		if !receipt.Successful() {
			result = &Confirmation{Receipt: receipt}
			return nil
		}

		head, err := w.BlockNumber(waitCtx)
		if err != nil {
			return err
		}
		depth := confirmationDepth(head, receipt.BlockNumber.ToInt())
		if depth < confirmations {
			return errReceiptPending
		}

		result = &Confirmation{Receipt: receipt, Confirmations: depth}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(pollInterval), waitCtx)
	if err := backoff.Retry(operation, b); err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, hash.Hex(), timeout)
		}
		return nil, err
	}
	return result, nil
}

// confirmationDepth is head - included + 1, or 0 when the node's head lags
// behind the receipt.
func confirmationDepth(head uint64, included *big.Int) uint64 {
	if included == nil || !included.IsUint64() {
		return 0
	}
	block := included.Uint64()
	if head < block {
		return 0
	}
	return head - block + 1
}
