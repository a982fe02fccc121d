package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/utils"
)

var _ Provider = (*RPCProvider)(nil)

// RPCProvider is a Provider backed by a JSON-RPC node that manages its own
// unlocked accounts (anvil, geth --dev, a signing proxy). The node cannot
// prompt, switch or add chains, so wallet_* methods are answered locally.
type RPCProvider struct {
	client *rpc.Client
	logger logger.Logger

	mu        sync.Mutex
	listeners map[string]map[int]func(json.RawMessage)
	nextID    int
}

// DialRPCProvider connects to the node at url.
func DialRPCProvider(ctx context.Context, url string, log logger.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s: %w", url, err)
	}
	return NewRPCProvider(client, log), nil
}

func NewRPCProvider(client *rpc.Client, log logger.Logger) *RPCProvider {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &RPCProvider{
		client:    client,
		logger:    log,
		listeners: make(map[string]map[int]func(json.RawMessage)),
	}
}

// Request implements Provider.
func (p *RPCProvider) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	switch args.Method {
	case MethodRequestAccounts:
		return p.call(ctx, MethodAccounts, nil)

	case MethodSwitchChain:
		target, err := switchTarget(args.Params)
		if err != nil {
			return nil, &RPCError{Code: -32602, Message: err.Error()}
		}
		current, err := p.chainID(ctx)
		if err != nil {
			return nil, err
		}
		if utils.SameChain(current, target) {
			return json.RawMessage("null"), nil
		}
		return nil, &RPCError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Node is on %s.", target, current),
		}

	case MethodAddChain:
		return nil, &RPCError{
			Code:    CodeUnsupportedMethod,
			Message: "wallet_addEthereumChain is not supported by this provider",
		}

	default:
		return p.call(ctx, args.Method, args.Params)
	}
}

// On implements Provider.
func (p *RPCProvider) On(event string, listener func(data json.RawMessage)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[int]func(json.RawMessage))
	}
	p.listeners[event][id] = listener

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners[event], id)
	}
}

// Watch polls the node and emits accountsChanged / chainChanged when the
// results differ from the previous poll. It blocks until ctx is done.
func (p *RPCProvider) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	lastAccounts, lastChain, ok := p.snapshot(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		accounts, chain, polled := p.snapshot(ctx)
		if !polled {
			continue
		}
		if ok && !slices.Equal(accounts, lastAccounts) {
			p.emit(EventAccountsChanged, accounts)
		}
		if ok && chain != lastChain {
			p.emit(EventChainChanged, chain)
		}
		lastAccounts, lastChain, ok = accounts, chain, true
	}
}

// Close closes the underlying RPC client.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func (p *RPCProvider) snapshot(ctx context.Context) ([]string, string, bool) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, MethodAccounts); err != nil {
		p.logger.Debug("watch: eth_accounts failed", map[string]any{"error": err.Error()})
		return nil, "", false
	}
	chain, err := p.chainID(ctx)
	if err != nil {
		p.logger.Debug("watch: eth_chainId failed", map[string]any{"error": err.Error()})
		return nil, "", false
	}
	if accounts == nil {
		accounts = []string{}
	}
	return accounts, chain, true
}

func (p *RPCProvider) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode provider event", map[string]any{
			"event": event,
			"error": err.Error(),
		})
		return
	}

	p.mu.Lock()
	listeners := make([]func(json.RawMessage), 0, len(p.listeners[event]))
	for _, l := range p.listeners[event] {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	p.logger.Info("provider event", map[string]any{
		"event": event,
		"data":  string(data),
	})
	for _, l := range listeners {
		l(data)
	}
}

func (p *RPCProvider) chainID(ctx context.Context) (string, error) {
	raw, err := p.call(ctx, MethodChainID, nil)
	if err != nil {
		return "", err
	}
	return decodeChainID(raw)
}

func (p *RPCProvider) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, toRPCError(err)
	}
	return raw, nil
}

// toRPCError keeps the JSON-RPC code and data of node errors so that revert
// reasons survive.
func toRPCError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}

	out := &RPCError{
		Code:    rpcErr.ErrorCode(),
		Message: rpcErr.Error(),
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		if data, mErr := json.Marshal(dataErr.ErrorData()); mErr == nil {
			out.Data = data
		}
	}
	return out
}

func switchTarget(params []any) (string, error) {
	if len(params) == 0 {
		return "", errors.New("missing chain parameter")
	}
	b, err := json.Marshal(params[0])
	if err != nil {
		return "", err
	}
	var target struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(b, &target); err != nil {
		return "", err
	}
	if target.ChainID == "" {
		return "", errors.New("missing chainId")
	}
	return target.ChainID, nil
}
