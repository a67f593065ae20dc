package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/aradsms/rental_bot/internal/platform/config"
	"github.com/aradsms/rental_bot/internal/platform/database"
	"github.com/aradsms/rental_bot/internal/platform/logger"
	"github.com/aradsms/rental_bot/internal/platform/messagebroker"
	grpcadapter "github.com/aradsms/rental_bot/internal/rental_service/adapters/grpc"
	httpadapter "github.com/aradsms/rental_bot/internal/rental_service/adapters/http"
	"github.com/aradsms/rental_bot/internal/rental_service/adapters/telegram"
	"github.com/aradsms/rental_bot/internal/rental_service/app"
	"github.com/aradsms/rental_bot/internal/rental_service/domain"
	"github.com/aradsms/rental_bot/internal/rental_service/repository/memory"
	"github.com/aradsms/rental_bot/internal/rental_service/repository/postgres"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(serviceName, opts.ConfigDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	mainCtx, mainCancel := context.WithCancel(parent)
	defer mainCancel()

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Starting service...", "version", version)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"telegram_api_url", cfg.TelegramAPIURL,
		"free_list_limit", cfg.FreeListLimit,
		"display_timezone", loc.String(),
		"ops_http_port", cfg.OpsHTTPPort,
		"grpc_health_port", cfg.GRPCHealthPort,
		"ops_auth_enabled", cfg.OpsJWTSecret != "",
		"nats_enabled", cfg.NATSURL != "",
		"postgres_enabled", cfg.PostgresDSN != "",
	)

	gate, err := app.NewAccessGate(cfg.AccessPhrase, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to build access gate: %w", err)
	}

	// Optional event sinks.
	var sinks []domain.EventPublisher
	var history httpadapter.EventHistory
	if cfg.NATSURL != "" {
		nc, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
		if err != nil {
			return err
		}
		defer nc.Close()
		sinks = append(sinks, app.NewBrokerEventPublisher(nc, appLogger))
		appLogger.Info("NATS connection initialized")
	}
	if cfg.PostgresDSN != "" {
		startCtx, cancel := context.WithTimeout(mainCtx, startupTimeout)
		dbPool, err := database.NewDBPool(startCtx, cfg.PostgresDSN)
		if err != nil {
			cancel()
			return err
		}
		defer dbPool.Close()
		err = database.EnsureSchema(startCtx, dbPool)
		cancel()
		if err != nil {
			return err
		}
		journal := postgres.NewPgRentalEventRepository(dbPool, appLogger)
		history = journal
		sinks = append(sinks, app.NewJournalEventPublisher(journal))
		appLogger.Info("Database connection pool initialized")
	}
	var publisher domain.EventPublisher
	if len(sinks) > 0 {
		multi := app.NewMultiPublisher(sinks...)
		appLogger.Info("Rental event publishing enabled", "sinks", multi.Len())
		publisher = multi
	}

	numbers := memory.NewNumberRegistry(appLogger, nil)
	sessions := memory.NewSessionStore()
	engine := app.NewMatchingEngine(numbers, sessions, gate, publisher, appLogger, app.EngineConfig{
		FreeListLimit: cfg.FreeListLimit,
		Location:      loc,
	})

	bot := telegram.NewClient(appLogger, cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramHTTPTimeout, nil)
	deliverer := app.NewDeliverer(bot, appLogger, app.DelivererConfig{MaxAttempts: cfg.SendMaxAttempts})
	dispatcher := app.NewEventDispatcher(engine, sessions, deliverer, appLogger)
	poller := app.NewUpdatePoller(bot, dispatcher, appLogger, app.PollerConfig{
		PollTimeout: cfg.TelegramPollTimeout,
		IdleDelay:   cfg.PollIdleDelay,
	})

	healthServer := grpcadapter.NewHealthServer(appLogger)
	poller.ReportHealthTo(healthServer)

	opsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OpsHTTPPort),
		Handler:           httpadapter.NewRouter(httpadapter.NewOpsHandler(numbers, history, appLogger, validator.New()), []byte(cfg.OpsJWTSecret)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCHealthPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC health: %w", err)
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		err := poller.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		appLogger.Info("Ops HTTP server listening", "addr", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := healthServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc health server: %w", err)
		}
		return nil
	})

	// Both servers stop once any component fails or shutdown begins.
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Ops HTTP server shutdown failed", "error", err)
		}
		healthServer.Stop()
		return nil
	})

	appLogger.Info("Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var groupErr error
	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case <-parent.Done():
		appLogger.Info("Parent context cancelled")
	case groupErr = <-watchGroup(g):
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	appLogger.Info("Attempting graceful shutdown...")
	mainCancel()

	if err := g.Wait(); err != nil {
		appLogger.Error("Error during graceful shutdown of components", "error", err)
		return err
	}
	appLogger.Info("Service shutdown complete.", slog.Int64("update_offset", poller.Offset()))
	return groupErr
}

// watchGroup is a helper to monitor an errgroup for early exit.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
