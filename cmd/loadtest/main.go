package main

import (
	"context"       // Run cancellation
	"encoding/json" // Report output
	"os"            // Exit status and stdout
	"os/signal"     // Interrupt handling
	"strings"       // Env key replacer
	"syscall"       // SIGTERM

	"wallet_saga/internal/config"   // Deployment defaults
	"wallet_saga/internal/loadtest" // Scenarios

	"github.com/shopspring/decimal" // Amounts
	"github.com/sirupsen/logrus"    // Logrus for structured logging
	"github.com/spf13/pflag"        // Command line flags
	"github.com/spf13/viper"        // Flag and environment binding
)

// Main function to run one load scenario against running services
func main() {
	defaults := config.LoadConfig() // Peer URLs and JWT secret of the deployment, .env included

	flags := pflag.NewFlagSet("loadtest", pflag.ExitOnError)
	flags.String("scenario", loadtest.ScenarioSmoke, "smoke, race or cascade")
	flags.Int("iterations", 10, "virtual users (smoke, cascade) or funded debits (race)")
	flags.Int("concurrency", 10, "in-flight requests per service")
	flags.String("amount", "10000", "unit amount per operation")
	flags.Duration("timeout", 0, "client timeout per request")
	flags.Duration("slow-after", 0, "latency above which a response counts as slow")
	flags.String("user-url", defaults.UserURL, "user service base URL")
	flags.String("wallet-url", defaults.WalletURL, "wallet service base URL")
	flags.String("payment-url", defaults.PaymentURL, "payment service base URL")
	flags.String("notification-url", defaults.NotifyURL, "notification service base URL")
	flags.String("credit-url", defaults.CreditURL, "credit service base URL")
	flags.String("jwt-secret", defaults.JWTSecret, "secret used to sign the service token of the race scenario")
	flags.String("log-level", "info", "logrus level")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("LOADTEST") // LOADTEST_WALLET_URL, LOADTEST_JWT_SECRET, ...
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		logrus.Fatalf("failed to bind flags: %v", err)
	}

	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	amount, err := decimal.NewFromString(v.GetString("amount"))
	if err != nil {
		logrus.Fatalf("invalid amount %q: %v", v.GetString("amount"), err)
	}
	cfg := loadtest.RunConfig{
		Targets: loadtest.Targets{
			User:         v.GetString("user-url"),
			Wallet:       v.GetString("wallet-url"),
			Payment:      v.GetString("payment-url"),
			Credit:       v.GetString("credit-url"),
			Notification: v.GetString("notification-url"),
		},
		Iterations:  v.GetInt("iterations"),
		Concurrency: v.GetInt("concurrency"),
		Amount:      amount,
		Timeout:     v.GetDuration("timeout"),
		SlowAfter:   v.GetDuration("slow-after"),
		JWTSecret:   v.GetString("jwt-secret"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scenario := v.GetString("scenario")
	logrus.WithFields(logrus.Fields{"scenario": scenario, "iterations": cfg.Iterations, "concurrency": cfg.Concurrency}).Info("Load test starting")
	report, err := loadtest.Run(ctx, scenario, cfg)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if err != nil {
		logrus.Fatalf("load test aborted: %v", err)
	}
	if !report.OK() {
		logrus.WithField("violations", len(report.Violations)).Error("Load test found invariant violations")
		os.Exit(1)
	}
	logrus.WithFields(logrus.Fields{"requests": report.Requests, "p95": report.P95}).Info("Load test passed")
}
