// Package tokenpay is a fixed-amount ERC20 payment widget: it connects to an
// EIP-1193 style wallet provider, keeps it on the configured chain, checks
// the payer's token balance and pays the merchant.
package tokenpay

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/session"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/ui"
	"github.com/vitwit/tokenpay/utils"
)

const Version = "0.1.0"

// Widget wires the session machine, the provider events and the HTTP binder.
type Widget struct {
	config  *types.Config
	machine *session.Machine
	binder  *ui.Binder
	logger  logger.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// New validates cfg and builds a widget around provider. provider may be nil;
// the widget then reports that no wallet is available.
func New(cfg *types.Config, provider clients.Provider, opts ...Option) (*Widget, error) {
	if cfg == nil {
		return nil, types.NewPaymentError(types.ErrConfigError, "config is required", nil)
	}
	cfg.ApplyDefaults()
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	o := &options{logger: logger.NoopLogger{}}
	for _, opt := range opts {
		opt(o)
	}

	machine, err := session.New(cfg, provider, o.sessionOptions()...)
	if err != nil {
		return nil, err
	}

	return &Widget{
		config:  cfg,
		machine: machine,
		binder:  ui.NewBinder(machine, o.logger),
		logger:  o.logger,
	}, nil
}

// NewFromFile loads the config at path (.toml or .json) and calls New.
func NewFromFile(path string, provider clients.Provider, opts ...Option) (*Widget, error) {
	cfg, err := utils.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, provider, opts...)
}

// Start subscribes to provider events and restores an already authorized
// session without prompting. It reports whether a session was restored.
func (w *Widget) Start(ctx context.Context) bool {
	w.mu.Lock()
	if w.unsubscribe == nil {
		w.unsubscribe = w.machine.Subscribe(ctx)
	}
	w.mu.Unlock()

	restored := w.machine.RestoreIfPossible(ctx)
	w.logger.Info("widget started", map[string]any{
		"chainId":  w.config.ChainIDHex,
		"restored": restored,
	})
	return restored
}

// Machine exposes the underlying session machine.
func (w *Widget) Machine() *session.Machine {
	return w.machine
}

func (w *Widget) Config() *types.Config {
	return w.config
}

// Controls renders the current widget state.
func (w *Widget) Controls() ui.Controls {
	return w.binder.Controls()
}

// Register mounts the widget API on r.
func (w *Widget) Register(r gin.IRouter) {
	w.binder.Register(r)
}

// Handler returns a standalone gin engine serving the widget API.
func (w *Widget) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	w.Register(r)
	return r
}

// Close stops reacting to provider events.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}
