package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitwit/tokenpay"
	"github.com/vitwit/tokenpay/clients"
	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/metrics"
	"github.com/vitwit/tokenpay/types"
	"github.com/vitwit/tokenpay/utils"
)

const defaultListen = ":8080"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v\n", err)
	}

	zl, err := logger.NewZapLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, zl); err != nil {
		zl.Error("tokenpay exited with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger) error {
	cfg, err := loadConfig(os.Getenv("TOKENPAY_CONFIG"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	var provider clients.Provider
	if url := os.Getenv("TOKENPAY_PROVIDER_URL"); url != "" {
		rpcProvider, err := clients.DialRPCProvider(ctx, url, log)
		if err != nil {
			return err
		}
		defer rpcProvider.Close()

		go rpcProvider.Watch(ctx, watchInterval(log))
		provider = rpcProvider
	} else {
		log.Warn("TOKENPAY_PROVIDER_URL not set, running without a wallet provider", nil)
	}

	widget, err := tokenpay.New(cfg, provider,
		tokenpay.WithLogger(log),
		tokenpay.WithMetrics(recorder),
	)
	if err != nil {
		return err
	}
	defer widget.Close()
	widget.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": tokenpay.Version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	widget.Register(router)

	listen := os.Getenv("TOKENPAY_LISTEN")
	if listen == "" {
		listen = defaultListen
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", map[string]any{
			"addr":    listen,
			"chainId": cfg.ChainIDHex,
			"token":   cfg.TokenContractAddress,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*types.Config, error) {
	if path == "" {
		return types.DefaultConfig(), nil
	}
	return utils.LoadConfigFile(path)
}

func watchInterval(log logger.Logger) time.Duration {
	raw := os.Getenv("TOKENPAY_WATCH_INTERVAL")
	if raw == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("invalid TOKENPAY_WATCH_INTERVAL, using 5s", map[string]any{"value": raw})
		return 5 * time.Second
	}
	return d
}
