package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mstgnz/telepay/handler"
	"github.com/mstgnz/telepay/infra/config"
	"github.com/mstgnz/telepay/infra/journal"
	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/infra/middle"
	"github.com/mstgnz/telepay/infra/opensearch"
	"github.com/mstgnz/telepay/provider"
	"github.com/mstgnz/telepay/provider/telebirr"
	"github.com/mstgnz/telepay/router"
	"github.com/mstgnz/telepay/signer"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "telepay",
		Short:        "Telebirr checkout gateway",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(newServeCommand(), newSignCommand(), newVerifyCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the debug server when DEBUG_PORT is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var sink logger.Sink
	var indexer middle.CallIndexer
	openSearchEnabled := false
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(opensearch.Options{
			URL:      cfg.OpenSearchURL,
			Username: cfg.OpenSearchUser,
			Password: cfg.OpenSearchPass,
			Enabled:  true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OpenSearch client: %v, continuing without it\n", err)
		} else {
			osLogger := opensearch.NewLogger(osClient)
			sink = osLogger
			indexer = osLogger
			openSearchEnabled = true
		}
	}

	logger.InitGlobalLogger(logger.Options{
		Level:       logger.ParseLevel(cfg.LoggingLevel),
		Environment: cfg.Environment,
		Version:     version,
		Sink:        sink,
	})
	logger.Info("Configuration loaded", logger.LogContext{Fields: map[string]any{
		"environment": cfg.Environment,
		"port":        cfg.Port,
		"debug_port":  cfg.DebugPort,
		"opensearch":  openSearchEnabled,
	}})

	pem, keyLoaded := config.ResolvePrivateKey(cfg.Gateway)
	httpClient := provider.NewGatewayHTTPClient(provider.CreateHTTPClientConfig(
		cfg.Gateway.BaseURL, cfg.Gateway.Timeout, cfg.Gateway.InsecureSkipVerify,
	))
	gateway, err := telebirr.NewClient(cfg.Gateway, pem, httpClient)
	if err != nil {
		return fmt.Errorf("gateway client: %w", err)
	}
	var keySigner *signer.Signer
	if keyLoaded {
		if keySigner, err = signer.New(pem); err != nil {
			return err
		}
	}

	var callJournal middle.CallJournal
	var notifications handler.NotificationStore
	var journalPinger handler.Pinger
	if cfg.JournalPath != "" {
		j, err := journal.NewSQLiteJournal(cfg.JournalPath)
		if err != nil {
			logger.Error("Failed to open call journal, continuing without it", err, logger.LogContext{
				Fields: map[string]any{"path": cfg.JournalPath},
			})
		} else {
			defer j.Close()
			callJournal, notifications, journalPinger = j, j, j
		}
	}

	limiter := middle.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()

	api := router.New(router.Options{
		Payments:    handler.NewPaymentHandler(gateway, provider.NewValidator(), notifications),
		Health:      handler.NewHealthHandler(gateway.KeyLoaded, journalPinger, openSearchEnabled, cfg.Environment, version),
		Journal:     callJournal,
		Indexer:     indexer,
		Limiter:     limiter,
		APIKey:      cfg.APIKey,
		IPWhitelist: cfg.IPWhitelist,
	})

	servers := []*http.Server{newServer(cfg.Port, api)}
	if cfg.DebugPort != "" {
		servers = append(servers, newServer(cfg.DebugPort, router.NewDebug(handler.NewDebugHandler(keySigner, cfg), cfg.APIKey)))
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("Server listening", logger.LogContext{Fields: map[string]any{"addr": srv.Addr}})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err = <-errCh:
		logger.Error("Server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Error("Server shutdown failed", serr, logger.LogContext{Fields: map[string]any{"addr": srv.Addr}})
		}
	}
	return err
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}
}
