package main

import (
	"context"   // Shutdown and recovery contexts
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"wallet_saga/internal/api"     // Custom package for API handlers
	"wallet_saga/internal/client"  // Inter-service client
	"wallet_saga/internal/config"  // Custom package for configuration
	"wallet_saga/internal/db"      // Database connection
	"wallet_saga/internal/gateway" // Settlement gateway
	"wallet_saga/internal/ledger"  // Wallet ledger
	"wallet_saga/internal/saga"    // Sagas and recovery
	"wallet_saga/internal/store"   // Repositories
	"wallet_saga/internal/utils"   // Service tokens

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

const serviceTokenTTL = 5 * time.Minute

// Main function to set up and run one service
func main() {
	cfg := config.LoadConfig() // Load configuration
	setupLogger(cfg)

	gdb, err := db.Open(cfg) // Connect to the service's own database
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	rdb := setupRedis(cfg)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := utils.NewTokenSource(cfg.Service, cfg.JWTSecret, serviceTokenTTL)
	newClient := func(name, baseURL string, timeout time.Duration) *client.Client {
		c, err := client.New(client.Options{
			Name: name, BaseURL: baseURL, Timeout: timeout, MaxConcurrent: cfg.CallMaxConc, Tokens: tokens,
		})
		if err != nil {
			logrus.Fatalf("failed to build %s client: %v", name, err)
		}
		return c
	}
	notify := func() *saga.Notify {
		return saga.NewNotify(client.NewNotificationClient(newClient("notification", cfg.NotifyURL, cfg.NotifyTimeout)), cfg.NotifyTimeout)
	}

	deps := api.Deps{Service: cfg.Service, JWTSecret: cfg.JWTSecret, Redis: rdb}
	var recoverer *saga.Recoverer
	switch cfg.Service {
	case config.ServiceUser:
		deps.Users = store.NewUsers(gdb)
		deps.Wallets = client.NewWalletClient(newClient("wallet", cfg.WalletURL, cfg.CallTimeout))
	case config.ServiceWallet:
		deps.Ledger = ledger.New(gdb)
		deps.Notify = notify()
	case config.ServicePayment:
		deps.Sagas = store.NewSagas(gdb)
		deps.Payments = saga.NewPaymentSaga(saga.PaymentOptions{
			Ledger:         client.NewWalletClient(newClient("wallet", cfg.WalletURL, cfg.CallTimeout)),
			Gateway:        gateway.NewSimulated(cfg.GatewayDelay, cfg.GatewayFail),
			Payments:       store.NewPayments(gdb),
			Sagas:          deps.Sagas,
			Notify:         notify(),
			GatewayTimeout: cfg.GatewayTO,
		})
		recoverer = saga.NewRecoverer(deps.Sagas, cfg.RecoveryGrace, deps.Payments, nil)
	case config.ServiceCredit:
		deps.Sagas = store.NewSagas(gdb)
		deps.Credits = saga.NewCreditSaga(saga.CreditOptions{
			Ledger:  client.NewWalletClient(newClient("wallet", cfg.WalletURL, cfg.CallTimeout)),
			Credits: store.NewCredits(gdb),
			Sagas:   deps.Sagas,
			Notify:  notify(),
		})
		recoverer = saga.NewRecoverer(deps.Sagas, cfg.RecoveryGrace, nil, deps.Credits)
	case config.ServiceNotification:
		deps.Notifications = store.NewNotifications(gdb)
	}

	r, err := api.NewRouter(deps)
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if recoverer != nil {
		go recoverer.Start(ctx, cfg.RecoveryEvery) // Resolve sagas left behind by a previous run
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logrus.WithFields(logrus.Fields{"service": cfg.Service, "port": cfg.AppPort}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("server forced to shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logrus.Info("Server exited")
}

// setupLogger uses JSON output in production and full timestamps otherwise
func setupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// setupRedis returns nil when no address is configured; the cache is optional
func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		logrus.Warn("REDIS_ADDR not set, caching disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	return rdb
}
