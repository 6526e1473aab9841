package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomlink/internal/core/services"
	"roomlink/internal/infrastructure/api"
	"roomlink/internal/infrastructure/monitoring"
	"roomlink/internal/infrastructure/repositories"
	"roomlink/pkg/config"
	"roomlink/pkg/logger"
	"roomlink/pkg/tracing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	ctxLogger *logger.ContextLogger
	tracer    *tracing.TracerProvider
	metrics   *monitoring.PrometheusCollector
	repos     *repositories.RepositoryFactory
	client    *api.Client
	sessions  *services.SessionStore
	rooms     *services.RoomDirectory
	admin     *services.AdminService
	analytics *services.AnalyticsService
}

var a = &app{}

var rootCmd = &cobra.Command{
	Use:           "roomlink",
	Short:         "Chat and video rooms from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return a.init(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return a.close()
	},
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	a.cfg = cfg

	zl := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	a.logger = zl.Sugar()
	a.ctxLogger = logger.NewContextLogger(zl)

	a.tracer, err = tracing.Init(cfg.Tracing)
	if err != nil {
		a.logger.Warnw("tracing disabled", "error", err)
		a.tracer = &tracing.TracerProvider{}
	}

	a.metrics = monitoring.NewPrometheusCollector()

	a.repos, err = repositories.NewRepositoryFactory(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}

	a.client = api.NewClient(api.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		Retry:          cfg.API.Retry,
		CircuitBreaker: cfg.API.CircuitBreaker,
	}, a.metrics, a.logger)

	a.sessions = services.NewSessionStore(a.client, a.repos.CreateSessionStorage(), a.logger)
	a.client.SetTokenSource(a.sessions)
	if err := a.sessions.Restore(ctx); err != nil {
		a.logger.Warnw("stored session unreadable", "error", err)
	}

	a.rooms = services.NewRoomDirectory(a.client, a.logger)
	a.admin = services.NewAdminService(a.client, a.client, a.sessions, a.logger)
	a.analytics = services.NewAnalyticsService(a.client, 3*time.Second, a.logger)

	a.logger.Debugw("client initialized",
		"api", cfg.API.BaseURL,
		"session_backend", a.repos.Backend(),
	)
	return nil
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warnw("tracer shutdown failed", "error", err)
		}
	}
	if a.repos != nil {
		if err := a.repos.Close(); err != nil {
			return err
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("ROOMLINK_CONFIG"), "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(roomsCmd, createCmd, joinCmd)
	rootCmd.AddCommand(adminCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}
