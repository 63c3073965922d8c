package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pillcare/pillcare/internal/config"
	"github.com/pillcare/pillcare/internal/domain/account"
	"github.com/pillcare/pillcare/internal/domain/alarm"
	"github.com/pillcare/pillcare/internal/domain/alert"
	"github.com/pillcare/pillcare/internal/domain/compliance"
	"github.com/pillcare/pillcare/internal/domain/dose"
	"github.com/pillcare/pillcare/internal/domain/medication"
	"github.com/pillcare/pillcare/internal/domain/patient"
	"github.com/pillcare/pillcare/internal/domain/treatment"
	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/db"
	"github.com/pillcare/pillcare/internal/platform/dispatch"
	"github.com/pillcare/pillcare/internal/platform/logging"
	"github.com/pillcare/pillcare/internal/platform/middleware"
	"github.com/pillcare/pillcare/internal/platform/notification"
	"github.com/pillcare/pillcare/internal/platform/validate"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "pillcare-server",
		Short: "PillCare 360 medication treatment API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Run the reminder dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify()
		},
	}
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
			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolOptions(cfg, "pillcare-server"))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
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
			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolOptions(cfg, "pillcare-server"))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.MigrationsDir
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolOptions(cfg, "pillcare-server"))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := account.NewService(account.NewRepoPG(pool), nil, nil, nil, logger)
			u, err := svc.CreateAdmin(ctx, email, name, password)
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	createAdmin.Flags().String("email", "", "Admin email")
	createAdmin.Flags().String("name", "Administrator", "Display name")
	createAdmin.Flags().String("password", "", "Initial password")
	cmd.AddCommand(createAdmin)

	return cmd
}

func poolOptions(cfg *config.Config, app string) db.PoolOptions {
	return db.PoolOptions{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		ConnectTimeout:  cfg.DBConnectTimeout,
		ApplicationName: app,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Level: cfg.LogLevel,
		Dev:   cfg.IsDev(),
		File:  cfg.LogFile,
	})
}

func newNotifier(cfg *config.Config, logger zerolog.Logger) *notification.Notifier {
	var sender notification.EmailSender = notification.LogSender{Logger: logger}
	if cfg.SMTPEnabled() {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
		})
	}
	return notification.NewNotifier(sender, nil, logger)
}

// newRevocationStore uses Redis when REDIS_URL is set so logouts are shared
// across replicas, and an in-process store otherwise.
func newRevocationStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, func(), error) {
	if cfg.RedisURL == "" {
		store := auth.NewMemoryRevocationStore()
		return store, store.Close, nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("using redis token revocation store")
	return auth.NewRedisRevocationStore(client), func() { client.Close() }, nil
}

// newEcho builds the server with global middleware, authentication and the
// public routes. Domain routes are mounted on the returned /api/v1 group.
func newEcho(cfg *config.Config, logger zerolog.Logger, tokens *auth.TokenIssuer, revocations auth.RevocationStore, users auth.UserStatus) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      tokens,
		Revocations: revocations,
		Users:       users,
		Skipper:     auth.AuthSkipper,
		Logger:      logger,
	}))
	e.Use(middleware.Audit(logger))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "PillCare 360 API",
			"version": version,
			"docs":    "/api/v1",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "PillCare 360 API",
			"version": version,
		})
	})

	api := e.Group("/api/v1")
	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rl))
	return e, api
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolOptions(cfg, "pillcare-server"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	revocations, closeRevocations, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up token revocation")
	}
	defer closeRevocations()

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL())
	notifier := newNotifier(cfg, logger)
	tx := db.NewTransactor(pool)

	accountSvc := account.NewService(account.NewRepoPG(pool), tokens, revocations, notifier, logger)
	e, api := newEcho(cfg, logger, tokens, revocations, accountSvc)
	e.GET("/health/db", db.HealthHandler(pool, version))

	patientSvc := patient.NewService(patient.NewRepoPG(pool), logger)
	medicationSvc := medication.NewService(medication.NewRepoPG(pool), logger)
	treatmentSvc := treatment.NewService(treatment.NewRepoPG(pool), treatment.NewReferencesPG(pool), logger)
	if cfg.InteractionCheck {
		treatmentSvc.SetConflictChecker(interactionConflicts{regimen: treatmentSvc, meds: medicationSvc})
	}

	routes := []interface{ RegisterRoutes(*echo.Group) }{
		account.NewHandler(accountSvc),
		patient.NewHandler(patientSvc),
		medication.NewHandler(medicationSvc),
		treatment.NewHandler(treatmentSvc),
		alarm.NewHandler(alarm.NewService(alarm.NewRepoPG(pool), tx, logger)),
		dose.NewHandler(dose.NewService(dose.NewRepoPG(pool), logger)),
		compliance.NewHandler(compliance.NewService(compliance.NewRepoPG(pool), cfg.ComplianceThreshold, logger)),
		alert.NewHandler(alert.NewService(alert.NewRepoPG(pool), logger)),
	}
	for _, r := range routes {
		r.RegisterRoutes(api)
	}
	auth.RegisterRevocationRoutes(api, revocations)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runNotify() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, poolOptions(cfg, "pillcare-notify"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var publisher dispatch.Publisher = dispatch.LogPublisher{Logger: logger}
	if cfg.MQTTBrokerURL != "" {
		mq, err := dispatch.NewMQTTPublisher(cfg.MQTTBrokerURL, "", logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to MQTT broker")
		}
		publisher = mq
	}
	defer publisher.Close()

	var mailer dispatch.Mailer
	if cfg.SMTPEnabled() {
		mailer = newNotifier(cfg, logger)
	}

	d := dispatch.New(
		dispatch.Config{
			Interval:    cfg.AlarmInterval(),
			Grace:       time.Duration(cfg.MissedDoseGraceMinutes) * time.Minute,
			TopicPrefix: cfg.MQTTTopicPrefix,
		},
		alarm.NewService(alarm.NewRepoPG(pool), db.NewTransactor(pool), logger),
		dose.NewService(dose.NewRepoPG(pool), logger),
		treatment.NewService(treatment.NewRepoPG(pool), treatment.NewReferencesPG(pool), logger),
		alert.NewService(alert.NewRepoPG(pool), logger),
		dispatch.NewDirectoryPG(pool),
		publisher,
		mailer,
		logger,
	)
	d.Start(ctx)
	return nil
}
