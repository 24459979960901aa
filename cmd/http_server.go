package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/auth"
	authPostgres "github.com/ycchuang/org-management/internal/auth/postgres"
	"github.com/ycchuang/org-management/internal/authorization"
	authzPostgres "github.com/ycchuang/org-management/internal/authorization/postgres"
	"github.com/ycchuang/org-management/internal/cache"
	"github.com/ycchuang/org-management/internal/core/events"
	"github.com/ycchuang/org-management/internal/notification"
	"github.com/ycchuang/org-management/internal/organization"
	orgPostgres "github.com/ycchuang/org-management/internal/organization/postgres"
	resettokenPostgres "github.com/ycchuang/org-management/internal/resettoken/postgres"
	"github.com/ycchuang/org-management/internal/transport/rest"
	"github.com/ycchuang/org-management/internal/user"
	userPostgres "github.com/ycchuang/org-management/internal/user/postgres"
	"github.com/ycchuang/org-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	GormDB      *gorm.DB
	RedisClient redis.UniversalClient
	Router      *chi.Mux
	Logger      *slog.Logger

	AuthHandler  *auth.Handler
	UserHandler  *user.Handler
	OrgHandler   *organization.Handler
	AuthzHandler *authorization.Handler
	RBAC         *authorization.RBAC
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.RedisClient,
		deps.AuthHandler,
		deps.UserHandler,
		deps.OrgHandler,
		deps.AuthzHandler,
		deps.RBAC,
		deps.Logger,
	)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.RedisClient.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	store := cache.NewRedisCache(redisClient, "")

	bus := events.NewEventBus(appLogger)
	organization.NewCacheInvalidator(store, appLogger).Register(bus)

	var mailer notification.Mailer
	if config.Mail.DevMode || config.Mail.Host == "" {
		mailer = notification.NewDevMailer(config.Server.FrontendURL, appLogger)
	} else {
		mailer = notification.NewSMTPMailer(config.Mail, config.Server.FrontendURL, appLogger)
	}

	authRepo := authPostgres.NewRepository(gormDB)
	resetStore := resettokenPostgres.NewStore(gormDB, config.Security.ResetTokenDuration)
	tokenGen := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenDuration)
	tokenCache := auth.NewTokenCache(store)

	authService := auth.NewService(
		authRepo,
		tokenCache,
		tokenGen,
		resetStore,
		mailer,
		appLogger,
		auth.ServiceConfig{
			BCryptCost:      config.Security.BCryptCost,
			RefreshTokenTTL: config.Security.RefreshTokenDuration,
			MailPolicy:      config.Security.VerificationMailPolicy,
		},
	)

	orgRepo := orgPostgres.NewRepository(gormDB)
	orgService := organization.NewService(orgRepo, store, bus, appLogger)

	userRepo := userPostgres.NewRepository(gormDB)
	userService := user.NewService(userRepo, appLogger, config.Security.BCryptCost)

	authzRepo := authzPostgres.NewRepository(gormDB)
	authzService := authorization.NewService(authzRepo, appLogger)

	return &Dependencies{
		Config:      config,
		Logger:      appLogger,
		DB:          db,
		GormDB:      gormDB,
		RedisClient: redisClient,
		Router:      chi.NewRouter(),

		AuthHandler:  auth.NewHandler(authService),
		UserHandler:  user.NewHandler(userService),
		OrgHandler:   organization.NewHandler(orgService),
		AuthzHandler: authorization.NewHandler(authzService),
		RBAC:         authorization.NewRBAC(appLogger),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
