package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/api"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/emailclient"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/repository/postgres"
	"github.com/ignite/newsletter/internal/service/subscription"
	"github.com/ignite/newsletter/internal/ses"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func configPath() string {
	path := flag.String("config", "", "path to config.yaml (default $APP_CONFIG or config/config.yaml)")
	flag.Parse()
	if *path != "" {
		return *path
	}
	if env := os.Getenv("APP_CONFIG"); env != "" {
		return env
	}
	return "config/config.yaml"
}

// newDispatcher builds the confirmation email sender selected by
// email_client.provider.
func newDispatcher(ctx context.Context, cfg config.EmailClientConfig) (subscription.EmailDispatcher, error) {
	sender, err := domain.ParseSubscriberEmail(cfg.SenderEmail)
	if err != nil {
		return nil, fmt.Errorf("email_client.sender_email: %w", err)
	}

	switch cfg.Provider {
	case "ses":
		client, err := ses.NewClient(ctx, ses.Options{
			Region:           cfg.SES.Region,
			AccessKey:        cfg.SES.AccessKey,
			SecretKey:        cfg.SES.SecretKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		}, sender)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "postmark", "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("email_client.base_url is required for provider %q", cfg.Provider)
		}
		var doer httpretry.HTTPDoer = &http.Client{Timeout: cfg.Timeout()}
		if cfg.MaxRetries > 0 {
			doer = httpretry.NewRetryClient(doer, cfg.MaxRetries)
		}
		return emailclient.New(cfg.BaseURL, sender, cfg.AuthorizationToken, doer), nil
	default:
		return nil, fmt.Errorf("unknown email_client.provider %q", cfg.Provider)
	}
}

func main() {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Redact()); err != nil {
		logger.Error("invalid log level", "level", cfg.Log.Level, "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		return fmt.Errorf("pre-flight check: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	db, err := postgres.Open(cfg.Database.URL, postgres.PoolOptions{
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime(),
		ConnectTimeoutSecs: cfg.Database.ConnectTimeoutSeconds,
		StatementTimeoutMs: cfg.Database.StatementTimeoutMs,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database pool configured", "host", postgres.HostOf(cfg.Database.URL), "max_open_conns", cfg.Database.MaxOpenConns)

	// The pool connects lazily; an unreachable database shows up in
	// /health/ready instead of blocking startup.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database ping failed at startup", "error", err)
	}
	pingCancel()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		logger.Info("redis configured", "addr", cfg.Redis.Addr)
	}

	dispatcher, err := newDispatcher(ctx, cfg.EmailClient)
	if err != nil {
		return err
	}
	logger.Info("email dispatcher configured", "provider", cfg.EmailClient.Provider, "max_retries", cfg.EmailClient.MaxRetries)

	svc := subscription.NewService(
		postgres.NewSubscriptionRepo(db),
		dispatcher,
		cfg.Application.BaseURL,
		subscription.WithTokenAttempts(cfg.Subscriptions.TokenAttempts),
	)

	router := api.SetupRoutes(api.RouterOptions{
		Subscriptions:  api.NewSubscriptionHandler(svc),
		Health:         api.NewHealthChecker(db, redisClient),
		AllowedOrigins: []string{cfg.Application.BaseURL},
	})
	server := api.NewServer(cfg.Server, router)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-done:
		logger.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
