package ui

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/session"
	"github.com/vitwit/tokenpay/types"
)

// Controller is the part of session.Machine the binder drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect()
	Pay(ctx context.Context) error
	Snapshot() session.View
}

var _ Controller = (*session.Machine)(nil)

// Response is the body of every binder endpoint.
type Response struct {
	Controls
	Error *types.PaymentError `json:"error,omitempty"`
}

// Binder exposes the widget triggers over HTTP. Only one trigger runs at a
// time; others are rejected with 409 while it is in flight.
type Binder struct {
	controller Controller
	logger     logger.Logger

	mu   sync.Mutex
	busy atomic.Bool
}

func NewBinder(controller Controller, log logger.Logger) *Binder {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Binder{
		controller: controller,
		logger:     log,
	}
}

// Register mounts the binder routes on r.
func (b *Binder) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/status", b.status)
	api.POST("/connect", b.trigger("connect", b.controller.Connect))
	api.POST("/disconnect", b.trigger("disconnect", func(context.Context) error {
		b.controller.Disconnect()
		return nil
	}))
	api.POST("/pay", b.trigger("pay", b.controller.Pay))
}

// Controls renders the current state.
func (b *Binder) Controls() Controls {
	return Render(b.controller.Snapshot(), b.busy.Load())
}

func (b *Binder) status(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Controls: b.Controls()})
}

func (b *Binder) trigger(name string, op func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.mu.TryLock() {
			b.logger.Debug("trigger rejected, another operation is running", map[string]any{"trigger": name})
			c.JSON(http.StatusConflict, Response{
				Controls: b.Controls(),
				Error:    types.NewPaymentError(types.ErrInvalidState, "Another wallet operation is in progress.", nil),
			})
			return
		}
		b.busy.Store(true)
		defer func() {
			b.busy.Store(false)
			b.mu.Unlock()
		}()

		err := op(context.WithoutCancel(c.Request.Context()))
		b.busy.Store(false)

		if err != nil {
			payErr := toPaymentError(err)
			b.logger.Info("trigger failed", map[string]any{
				"trigger": name,
				"code":    payErr.Code,
			})
			c.JSON(statusFor(payErr.Code), Response{Controls: b.Controls(), Error: payErr})
			return
		}
		c.JSON(http.StatusOK, Response{Controls: b.Controls()})
	}
}

func toPaymentError(err error) *types.PaymentError {
	var pe *types.PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	return types.NewPaymentError(types.ErrUnknown, clients.ExtractUserMessage(err, ""), err)
}

func statusFor(code string) int {
	switch code {
	case types.ErrInvalidState, types.ErrInsufficientBalance:
		return http.StatusConflict
	case types.ErrUserRejected:
		return http.StatusForbidden
	case types.ErrNoProvider, types.ErrMisconfiguredMerchant:
		return http.StatusServiceUnavailable
	case types.ErrTransactionTimeout:
		return http.StatusGatewayTimeout
	case types.ErrBalanceQuery:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}
