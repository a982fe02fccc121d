// Package session holds the payment session state machine: wallet connection,
// chain assurance, balance evaluation and the pay flow.
package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/metrics"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/utils"
)

const (
	msgNoProvider   = "No EVM wallet detected. Configure a wallet provider and try again."
	msgMerchant     = "Set merchantAddress in the payment config before taking payments."
	msgConnectFail  = "Failed to connect wallet."
	msgNoAccount    = "No wallet account found."
	msgDisconnected = "Wallet disconnected from this session."
)

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.metrics = r
		}
	}
}

func WithFlagStore(s FlagStore) Option {
	return func(m *Machine) {
		if s != nil {
			m.flags = s
		}
	}
}

// WithConfirmationTimeout bounds the wait for the payment receipt.
func WithConfirmationTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.confirmTimeout = d
		}
	}
}

// WithPollInterval sets how often the receipt is polled while confirming.
func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// Machine owns the payment session. Top-level operations run one at a time;
// Snapshot can be called concurrently with them.
type Machine struct {
	cfg      *types.Config
	provider clients.Provider
	wallet   *clients.WalletSession
	token    clients.ERC20
	required *big.Int

	flags          FlagStore
	logger         logger.Logger
	metrics        metrics.Recorder
	confirmTimeout time.Duration
	pollInterval   time.Duration

	// op serializes top-level operations, including ones triggered by
	// provider events.
	op sync.Mutex

	mu        sync.RWMutex
	state     State
	session   types.Session
	message   Message
	tx        *types.TransactionRecord
	redirect  string
	listeners []func(View)
}

// New builds a Machine for cfg. provider may be nil, in which case every
// wallet operation fails with ErrNoProvider.
func New(cfg *types.Config, provider clients.Provider, opts ...Option) (*Machine, error) {
	if cfg == nil {
		return nil, types.NewPaymentError(types.ErrConfigError, "config is required", nil)
	}

	required, err := utils.ParseAmountWithDecimals(cfg.PaymentAmount, cfg.TokenDecimals)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrConfigError, fmt.Sprintf("invalid paymentAmount: %v", err), err)
	}
	if required.Sign() <= 0 {
		return nil, types.NewPaymentError(types.ErrConfigError, "paymentAmount must be greater than zero", nil)
	}
	if !utils.ValidateAddress(cfg.TokenContractAddress) {
		return nil, types.NewPaymentError(types.ErrConfigError,
			fmt.Sprintf("invalid tokenContractAddress %q", cfg.TokenContractAddress), nil)
	}

	m := &Machine{
		cfg:            cfg,
		provider:       provider,
		required:       required,
		flags:          NewMemoryFlagStore(),
		logger:         logger.NoopLogger{},
		metrics:        metrics.NoopRecorder{},
		confirmTimeout: clients.DefaultConfirmationTimeout,
		pollInterval:   clients.DefaultPollInterval,
		state:          StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}

	if provider != nil {
		m.wallet = clients.NewWalletSession(provider, m.logger)
	}

	var caller clients.ContractCaller
	if m.wallet != nil {
		caller = m.wallet
	}
	token, err := clients.NewTokenClient(cfg.TokenContract(), caller)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrConfigError, err.Error(), err)
	}
	m.token = token

	return m, nil
}

// Config returns the configuration the machine was built with.
func (m *Machine) Config() *types.Config {
	return m.cfg
}

// RequiredAmount returns the payment amount in the token's smallest unit.
func (m *Machine) RequiredAmount() *big.Int {
	return new(big.Int).Set(m.required)
}

// Snapshot returns a copy of the current view.
func (m *Machine) Snapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked()
}

// OnChange registers fn to be called with the new view after every change.
func (m *Machine) OnChange(fn func(View)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Connect asks the wallet for account access, makes sure it is on the target
// chain and evaluates the balance. Any failure leaves the machine
// Disconnected with the error message shown.
func (m *Machine) Connect(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	start := time.Now()
	err := m.connect(ctx)
	labels := m.labels()
	if err != nil {
		m.metrics.IncCounter("connect_failed", labels)
		m.logger.Warn("wallet connect failed", map[string]any{
			"code":  types.CodeOf(err),
			"error": err.Error(),
		})
		return err
	}
	m.metrics.IncCounter("connect_succeeded", labels)
	m.metrics.ObserveLatency("connect", time.Since(start), labels)
	return nil
}

func (m *Machine) connect(ctx context.Context) error {
	if m.provider == nil {
		return m.failConnect(types.NewPaymentError(types.ErrNoProvider, msgNoProvider, nil))
	}
	if !m.cfg.MerchantConfigured() {
		return m.failConnect(types.NewPaymentError(types.ErrMisconfiguredMerchant, msgMerchant, nil))
	}

	m.update(func() {
		m.state = StateConnecting
	})

	accounts, err := m.wallet.RequestAccounts(ctx)
	if err != nil {
		return m.failConnect(clients.ToPaymentError(err, types.ErrUnknown, msgConnectFail))
	}

	if err := m.EnsureTargetChain(ctx); err != nil {
		return m.failConnect(clients.ToPaymentError(err, types.ErrWrongChain, m.wrongChainMessage()))
	}

	if len(accounts) == 0 || accounts[0] == "" {
		return m.failConnect(types.NewPaymentError(types.ErrUnknown, msgNoAccount, nil))
	}

	m.flags.Clear(DisconnectFlagKey)

	if err := m.applyConnected(ctx, accounts[0]); err != nil {
		return m.failConnect(clients.ToPaymentError(err, types.ErrBalanceQuery, msgConnectFail))
	}
	return nil
}

func (m *Machine) failConnect(err *types.PaymentError) error {
	m.reset(Message{Text: err.Message, Kind: KindError})
	return err
}

// Disconnect forgets the session and suppresses automatic restoration until
// the next explicit Connect.
func (m *Machine) Disconnect() {
	m.op.Lock()
	defer m.op.Unlock()
	m.disconnect()
}

func (m *Machine) disconnect() {
	m.flags.Set(DisconnectFlagKey)
	m.reset(Message{Text: msgDisconnected, Kind: KindSuccess})
	m.logger.Info("wallet disconnected", nil)
}

// RestoreIfPossible reconnects to an already authorized wallet without
// prompting the user. Failures reset the machine silently. It reports whether
// a session was restored.
func (m *Machine) RestoreIfPossible(ctx context.Context) bool {
	m.op.Lock()
	defer m.op.Unlock()
	return m.restore(ctx)
}

func (m *Machine) restore(ctx context.Context) bool {
	if m.provider == nil || m.flags.Get(DisconnectFlagKey) {
		return false
	}

	accounts, err := m.wallet.Accounts(ctx)
	if err != nil {
		m.silentReset("eth_accounts failed", err)
		return false
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return false
	}

	onTarget, err := m.onTargetChain(ctx)
	if err != nil {
		m.silentReset("chain check failed", err)
		return false
	}
	if !onTarget {
		m.logger.Info("not restoring session, wallet is on another chain", nil)
		return false
	}

	if err := m.applyConnected(ctx, accounts[0]); err != nil {
		m.silentReset("balance check failed", err)
		return false
	}
	m.logger.Info("wallet session restored", map[string]any{"address": accounts[0]})
	return true
}

func (m *Machine) silentReset(reason string, err error) {
	m.logger.Warn("session restore failed: "+reason, map[string]any{"error": err.Error()})
	m.reset(Message{})
}

// Reload drops all session state and restores it from the wallet as if the
// widget had just started.
func (m *Machine) Reload(ctx context.Context) bool {
	m.op.Lock()
	defer m.op.Unlock()
	return m.reload(ctx)
}

func (m *Machine) reload(ctx context.Context) bool {
	m.reset(Message{})
	return m.restore(ctx)
}

// HandleAccountsChanged reacts to the provider's accountsChanged event.
func (m *Machine) HandleAccountsChanged(ctx context.Context, accounts []string) {
	m.op.Lock()
	defer m.op.Unlock()

	m.logger.Info("accounts changed", map[string]any{"count": len(accounts)})
	if len(accounts) == 0 {
		m.disconnect()
		return
	}
	m.reload(ctx)
}

// HandleChainChanged reacts to the provider's chainChanged event.
func (m *Machine) HandleChainChanged(ctx context.Context, chainID string) {
	m.op.Lock()
	defer m.op.Unlock()

	m.logger.Info("chain changed", map[string]any{"chainId": chainID})
	m.reload(ctx)
}

// Subscribe routes provider events into the machine until the returned
// function is called. ctx is used for the operations the events trigger.
func (m *Machine) Subscribe(ctx context.Context) (unsubscribe func()) {
	if m.wallet == nil {
		return func() {}
	}

	offAccounts := m.wallet.OnAccountsChanged(func(accounts []string) {
		m.HandleAccountsChanged(ctx, accounts)
	})
	offChain := m.wallet.OnChainChanged(func(chainID string) {
		m.HandleChainChanged(ctx, chainID)
	})

	return func() {
		offAccounts()
		offChain()
	}
}

// applyConnected evaluates the balance of address and moves to the matching
// connected substate.
func (m *Machine) applyConnected(ctx context.Context, address string) error {
	check, err := m.CheckSufficientBalance(ctx, address)
	if err != nil {
		return err
	}

	m.update(func() {
		m.session = types.Session{
			Address:         address,
			IsConnected:     true,
			IsOnTargetChain: true,
		}
		m.applyBalanceLocked(check)
		m.tx = nil
		m.redirect = ""
		if check.Sufficient {
			m.message = Message{Text: m.sufficientMessage(check.HumanBalance), Kind: KindSuccess}
		} else {
			m.message = Message{Text: m.insufficientMessage(check.HumanBalance), Kind: KindError}
		}
	})
	return nil
}

// applyBalanceLocked stores check in the session and picks the connected
// substate. Callers hold m.mu.
func (m *Machine) applyBalanceLocked(check *BalanceCheck) {
	m.session.TokenBalance = new(big.Int).Set(check.Balance)
	m.session.HumanBalance = check.HumanBalance
	m.session.HasSufficientBalance = check.Sufficient
	if check.Sufficient {
		m.state = StateConnectedSufficient
	} else {
		m.state = StateConnectedInsufficient
	}
}

func (m *Machine) sufficientMessage(balance string) string {
	sym := m.cfg.TokenSymbol
	return fmt.Sprintf("Wallet connected. Balance: %s %s. You can now pay %s %s.", balance, sym, m.cfg.PaymentAmount, sym)
}

func (m *Machine) insufficientMessage(balance string) string {
	sym := m.cfg.TokenSymbol
	return fmt.Sprintf("Insufficient %s balance. You have %s %s but need %s %s.", sym, balance, sym, m.cfg.PaymentAmount, sym)
}

func (m *Machine) wrongChainMessage() string {
	return fmt.Sprintf("Please switch your wallet network to %s and try again.", m.cfg.ChainName)
}

func (m *Machine) reset(msg Message) {
	m.update(func() {
		m.state = StateDisconnected
		m.session = types.Session{}
		m.message = msg
		m.tx = nil
		m.redirect = ""
	})
}

func (m *Machine) setMessage(msg Message) {
	m.update(func() {
		m.message = msg
	})
}

// update applies fn under the lock and notifies listeners with the result.
func (m *Machine) update(fn func()) {
	m.mu.Lock()
	from := m.state
	fn()
	to := m.state
	view := m.viewLocked()
	listeners := append([]func(View){}, m.listeners...)
	m.mu.Unlock()

	if from != to {
		m.logger.Info("session transition", map[string]any{
			"from": from.String(),
			"to":   to.String(),
		})
	}
	for _, l := range listeners {
		l(view)
	}
}

func (m *Machine) viewLocked() View {
	v := View{
		State:       m.state,
		Session:     m.session.Clone(),
		Message:     m.message,
		RedirectURL: m.redirect,
	}
	if m.tx != nil {
		tx := *m.tx
		v.Transaction = &tx
	}
	return v
}

func (m *Machine) labels() map[string]string {
	return map[string]string{"chain": m.cfg.ChainIDHex}
}
