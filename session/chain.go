package session

import (
	"context"

	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/utils"
)

// EnsureTargetChain makes sure the wallet is on the configured chain,
// switching or adding it if needed. It may prompt the user.
func (m *Machine) EnsureTargetChain(ctx context.Context) error {
	if m.wallet == nil {
		return types.NewPaymentError(types.ErrNoProvider, msgNoProvider, nil)
	}

	onTarget, err := m.onTargetChain(ctx)
	if err != nil {
		return clients.ToPaymentError(err, types.ErrWrongChain, m.wrongChainMessage())
	}
	if onTarget {
		return nil
	}

	switchErr := m.wallet.SwitchChain(ctx, m.cfg.ChainIDHex)
	if switchErr == nil {
		m.logger.Info("switched wallet chain", map[string]any{"chainId": m.cfg.ChainIDHex})
		return nil
	}

	if code, ok := clients.ProviderCode(switchErr); ok && code == clients.CodeUnrecognizedChain {
		m.logger.Info("chain unknown to wallet, adding it", map[string]any{"chainId": m.cfg.ChainIDHex})
		if err := m.wallet.AddChain(ctx, m.cfg.ChainDescriptor()); err != nil {
			return types.NewPaymentError(
				types.ErrChainSwitch,
				clients.ExtractUserMessage(err, m.wrongChainMessage()),
				err,
			)
		}
		return nil
	}

	// some wallets apply the switch and still report an error
	if onTarget, err := m.onTargetChain(ctx); err == nil && onTarget {
		return nil
	}

	m.logger.Warn("wallet chain switch failed", map[string]any{"error": switchErr.Error()})
	return types.NewPaymentError(types.ErrWrongChain, m.wrongChainMessage(), switchErr)
}

// onTargetChain compares the wallet's chain with the configured one without
// prompting.
func (m *Machine) onTargetChain(ctx context.Context) (bool, error) {
	current, err := m.wallet.ChainID(ctx)
	if err != nil {
		return false, err
	}
	return utils.SameChain(current, m.cfg.ChainIDHex), nil
}
