package clients_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vitwit/tokenpay/clients"
)

type handlerFunc func(params []any) (json.RawMessage, error)

// scriptedProvider answers requests from per-method handlers.
type scriptedProvider struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		handlers: make(map[string]handlerFunc),
		calls:    make(map[string]int),
	}
}

func (p *scriptedProvider) handle(method string, h handlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = h
}

func (p *scriptedProvider) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *scriptedProvider) Request(_ context.Context, args clients.RequestArguments) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls[args.Method]++
	h, ok := p.handlers[args.Method]
	p.mu.Unlock()

	if !ok {
		return nil, &clients.RPCError{Code: clients.CodeUnsupportedMethod, Message: fmt.Sprintf("%s not scripted", args.Method)}
	}
	return h(args.Params)
}

func (p *scriptedProvider) On(string, func(json.RawMessage)) func() {
	return func() {}
}

func result(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	return b, err
}
