package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mindcare/mindcare/internal/config"
	"github.com/mindcare/mindcare/internal/domain/availability"
	"github.com/mindcare/mindcare/internal/domain/booking"
	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/db"
	"github.com/mindcare/mindcare/internal/platform/meeting"
	"github.com/mindcare/mindcare/internal/platform/middleware"
	"github.com/mindcare/mindcare/internal/platform/notification"
	"github.com/mindcare/mindcare/internal/platform/telemetry"
	"github.com/mindcare/mindcare/migrations"
)

const serviceName = "mindcare-server"

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "MindCare booking and availability API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(workerCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
}

// loadConfig loads and validates configuration for commands that talk to
// the database.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// migrationSource returns the embedded migrations unless dir overrides them.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func participantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Manage directory participants",
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register or refresh a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, _ := cmd.Flags().GetString("account")
			roleFlag, _ := cmd.Flags().GetString("role")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")

			role, err := auth.ParseRole(roleFlag)
			if err != nil {
				return err
			}

			return withDirectory(cmd.Context(), func(ctx context.Context, svc *directory.Service) error {
				p, err := svc.Register(ctx, account, role, email, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Ref, p.Role, p.Email)
				return nil
			})
		},
	}
	registerCmd.Flags().String("account", "", "Account id (token subject)")
	registerCmd.Flags().String("role", "", "client or professional")
	registerCmd.Flags().String("email", "", "Contact email")
	registerCmd.Flags().String("name", "", "Display name")
	_ = registerCmd.MarkFlagRequired("account")
	_ = registerCmd.MarkFlagRequired("role")
	_ = registerCmd.MarkFlagRequired("email")
	cmd.AddCommand(registerCmd)

	for _, active := range []bool{true, false} {
		use, short := "activate", "Allow a participant to take bookings"
		if !active {
			use, short = "deactivate", "Stop a participant from taking new bookings"
		}
		sub := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				account, _ := cmd.Flags().GetString("account")
				return withDirectory(cmd.Context(), func(ctx context.Context, svc *directory.Service) error {
					return svc.SetActive(ctx, account, active)
				})
			},
		}
		sub.Flags().String("account", "", "Account id (token subject)")
		_ = sub.MarkFlagRequired("account")
		cmd.AddCommand(sub)
	}

	return cmd
}

func withDirectory(ctx context.Context, fn func(context.Context, *directory.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, directory.NewService(directory.NewRepoPG(pool)))
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued notifications and session reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			return runWorker(concurrency)
		},
	}
	cmd.Flags().Int("concurrency", 10, "Number of tasks processed in parallel")
	return cmd
}

func runWorker(concurrency int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required to run the worker")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{notification.QueueName: 1},
	})
	mux := notification.NewWorkerMux(
		notification.LogInbox{Logger: logger},
		notification.LogEmailSender{Logger: logger},
		booking.NewReminderCheck(booking.NewRepoPG(pool), cfg.Location()),
		logger,
	)

	logger.Info().Int("concurrency", concurrency).Str("queue", notification.QueueName).Msg("worker starting")
	// Run blocks until SIGINT or SIGTERM.
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

// buildDispatcher picks the asynq-backed dispatcher when Redis is configured
// and the in-process worker pool otherwise. check filters reminders at fire
// time. The returned close function drains and releases it.
func buildDispatcher(cfg *config.Config, check notification.ReminderCheck, logger zerolog.Logger) (notification.Dispatcher, func(), error) {
	if cfg.RedisURL != "" {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := asynq.NewClient(opt)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("close asynq client")
			}
		}
		return notification.NewQueueDispatcher(client, logger), closeFn, nil
	}

	d := notification.NewInProcessDispatcher(
		notification.LogInbox{Logger: logger},
		notification.LogEmailSender{Logger: logger},
		logger,
		notification.InProcessConfig{
			Workers:   cfg.NotifyWorkers,
			QueueSize: cfg.NotifyQueueSize,
			Timeout:   cfg.NotifyTimeout,
			Reminders: check,
		},
	)
	return d, d.Close, nil
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return jc
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger = newLogger(cfg.Env, os.Stdout)
	loc := cfg.Location()

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTELEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	// Database
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Collaborators
	bookingRepo := booking.NewRepoPG(pool)
	dispatcher, closeDispatcher, err := buildDispatcher(cfg, booking.NewReminderCheck(bookingRepo, loc), logger)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	issuer, err := meeting.NewRandomIssuer(cfg.MeetingBaseURL, cfg.MeetingPasswordLength)
	if err != nil {
		return fmt.Errorf("meeting issuer: %w", err)
	}

	// Domain services
	tx := db.NewTransactor(pool)
	dirSvc := directory.NewService(directory.NewRepoPG(pool))
	availSvc := availability.NewService(availability.NewRepoPG(pool), tx, dirSvc, bookingRepo, loc)
	checker := booking.NewConflictChecker(availSvc, dirSvc, bookingRepo)
	bookingSvc := booking.NewService(
		bookingRepo, checker, tx, dirSvc, issuer, dispatcher,
		notification.NewTemplateEngine(), logger,
		booking.Config{Location: loc, ReminderLead: cfg.ReminderLead},
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(telemetry.Middleware(telemetry.Tracer(serviceName)))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health checks sit outside authentication.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.NewMigrator(pool, migrationSource(""))))

	// Auth middleware
	var authMw echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		logger.Warn().Msg("development auth enabled: identities are taken from request headers")
		authMw = auth.DevAuthMiddleware()
	} else {
		authMw = auth.JWTMiddleware(jwtConfig(cfg))
	}

	apiV1 := e.Group("/api/v1", authMw, middleware.RateLimit(rateLimitConfig(cfg)))

	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)
	availability.NewHandler(availSvc).RegisterRoutes(apiV1)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown error")
	}
	return nil
}
