package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"calmpath.app/memorycare/internal/api"
	"calmpath.app/memorycare/internal/auth"
	"calmpath.app/memorycare/internal/config"
	"calmpath.app/memorycare/internal/core"
	"calmpath.app/memorycare/internal/platform/telegram"
	"calmpath.app/memorycare/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "calmpath",
		Short:         "CalmPath memory-care monitoring server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(createStaffCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the inactivity monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one inactivity sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			created, err := a.monitor.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info().Int("alerts_created", created).Msg("Inactivity sweep complete")
			return nil
		},
	}
}

func createStaffCmd() *cobra.Command {
	var staffID, password string
	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Provision a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.staff.CreateStaff(cmd.Context(), staffID, password)
			if err != nil {
				return err
			}
			a.logger.Info().Str("user_id", user.ExternalUserID).Msg("Staff account created")
			return nil
		},
	}
	cmd.Flags().StringVar(&staffID, "id", "", "staff user id")
	cmd.Flags().StringVar(&password, "password", "", "staff password")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// app holds the wired services shared by every command.
type app struct {
	cfg           *config.Config
	logger        zerolog.Logger
	repo          store.Repository
	llm           *core.LLMService
	staff         *core.StaffService
	patients      *core.PatientService
	conversations *core.ConversationService
	alerts        *core.AlertService
	monitor       *core.InactivityMonitor
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	default:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("Connected to database")

	a := &app{cfg: cfg, logger: logger, repo: repo}

	var backend core.Backend
	if cfg.GeminiAPIKey != "" {
		llm, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			repo.Close()
			return nil, err
		}
		a.llm = llm
		backend = llm
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, conversations will use the fallback reply")
	}

	var notifier core.AlertNotifier
	if cfg.TelegramBotToken != "" {
		notifier = telegram.NewNotifier(telegram.NewClient(cfg.TelegramBotToken), cfg.TelegramChatID)
	}

	a.alerts = core.NewAlertService(repo, notifier, logger)
	a.staff = core.NewStaffService(repo, auth.NewIssuer(cfg.JWTSecret, auth.DefaultTokenTTL))
	a.patients = core.NewPatientService(repo, a.alerts, logger)
	a.conversations = core.NewConversationService(repo, core.NewGenerator(backend, cfg.LLMTimeout, logger), a.alerts, logger)
	a.monitor = core.NewInactivityMonitor(repo, a.alerts, cfg.InactivityCheckInterval, cfg.InactivityThreshold, logger)
	return a, nil
}

func (a *app) close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Error closing database")
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	apiHandler := api.NewAPIHandler(a.staff, a.patients, a.conversations, a.alerts,
		api.Options{UploadDir: a.cfg.UploadDir, MaxUploadBytes: a.cfg.MaxUploadBytes}, a.logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", a.cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	a.monitor.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", serverAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.monitor.Stop()
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-ctx.Done():
	}
	a.logger.Info().Msg("Shutting down server...")
	a.monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info().Msg("Server exiting gracefully")
	return nil
}
