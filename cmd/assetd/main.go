// Package main provides the asset tracking server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/schoolops/assettrack/pkg/asset"
	"github.com/schoolops/assettrack/pkg/audit"
	"github.com/schoolops/assettrack/pkg/authn"
	"github.com/schoolops/assettrack/pkg/lifecycle"
	"github.com/schoolops/assettrack/pkg/report"
	"github.com/schoolops/assettrack/pkg/sheetsync"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		syncPath     string
		authModeStr  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "sqlite", "Database type (sqlite, postgres or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&syncPath, "sync-config", "", "Path to sheet sync config (empty disables sync)")
	flag.StringVar(&authModeStr, "auth-mode", "", "Auth mode (header, jwt or none)")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting asset tracking server",
		"listen", listenAddr,
		"dbType", databaseType,
		"syncConfig", syncPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	assets := asset.NewStore(gormDB)
	checkouts := asset.NewCheckoutStore(gormDB)
	tickets := asset.NewTicketStore(gormDB)
	syncLogs := sheetsync.NewLogStore(gormDB)
	if err := assets.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := syncLogs.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	auditStore := audit.NewStore(gormDB)
	if err := auditStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}
	auditCfg := audit.ConfigFromEnv()
	go audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger).Run(ctx)

	engine := lifecycle.NewEngine(gormDB, logger)

	// Auth mode: header (default), jwt, or none. In none mode there is no
	// identity and every route is open; local development only.
	identityMiddleware, requireOperator, err := setupAuth(authModeStr, logger)
	if err != nil {
		glog.Fatalf("Failed to configure auth: %v", err)
	}

	// Sheet sync is optional; without a config the endpoints are not
	// mounted and no scheduler runs.
	var scheduler *sheetsync.Scheduler
	var source sheetsync.TabularSource
	if syncPath != "" {
		cfg, err := sheetsync.LoadConfig(syncPath)
		if err != nil {
			glog.Fatalf("Failed to load sync config: %v", err)
		}
		client, err := sheetsync.NewSheetsClient(cfg, logger)
		if err != nil {
			glog.Fatalf("Failed to create sheets client: %v", err)
		}
		source = client
		reconciler := sheetsync.NewReconciler(gormDB, client, logger)
		scheduler = sheetsync.NewScheduler(reconciler, cfg.Interval, logger)
		go scheduler.Run(ctx)
		logger.Info("sheet sync enabled",
			"spreadsheetId", cfg.SpreadsheetID,
			"sheet", cfg.SheetName,
			"interval", cfg.Interval.String())
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			authn.UserHeader, authn.RoleHeader},
	}))
	if identityMiddleware != nil {
		router.Use(identityMiddleware)
	}
	router.Use(audit.Middleware(auditStore, auditCfg, logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/assets", asset.Router(assets, checkouts, requireOperator))
		r.Mount("/lifecycle", lifecycle.Router(engine, checkouts, tickets, requireOperator))
		r.Mount("/reports", report.Router(report.NewReporter(assets, checkouts)))
		r.Mount("/audit", audit.Router(auditStore, requireOperator))
		if scheduler != nil {
			r.Mount("/sync", sheetsync.Router(scheduler, source, syncLogs, requireOperator))
		}
	})

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("asset tracking server ready", "listen", listenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("asset tracking server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}
	if dbType == "" {
		dbType = envOrDefault("DATABASE_TYPE", "sqlite")
	}

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		if dsn == "" {
			dsn = "assettrack.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for postgres (use -db-dsn or DATABASE_DSN)")
		}
		dialector = postgres.Open(dsn)
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for mysql (use -db-dsn or DATABASE_DSN)")
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database type %q (expected sqlite, postgres or mysql)", dbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gormDB, nil
}

// setupAuth returns the identity middleware and the operator guard for the
// configured mode. In "none" mode both are nil and every route is open.
func setupAuth(mode string, logger *slog.Logger) (func(http.Handler) http.Handler, func(http.Handler) http.Handler, error) {
	if mode == "" {
		mode = envOrDefault("ASSETD_AUTH_MODE", "header")
	}

	switch mode {
	case "header":
		logger.Info("using header-based auth", "userHeader", authn.UserHeader)
		return authn.HeaderMiddleware, authn.RequireOperator, nil
	case "jwt":
		jwtCfg := authn.JWTConfig{
			UserClaim:     envOrDefault("ASSETD_JWT_USER_CLAIM", "sub"),
			RoleClaim:     envOrDefault("ASSETD_JWT_ROLE_CLAIM", "role"),
			PublicKeyPath: os.Getenv("ASSETD_JWT_PUBLIC_KEY_PATH"),
			Issuer:        os.Getenv("ASSETD_JWT_ISSUER"),
			Audience:      os.Getenv("ASSETD_JWT_AUDIENCE"),
			Logger:        logger,
		}
		mw, err := authn.NewJWTMiddleware(jwtCfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using JWT auth",
			"roleClaim", jwtCfg.RoleClaim,
			"hasPublicKey", jwtCfg.PublicKeyPath != "")
		return mw, authn.RequireOperator, nil
	case "none":
		logger.Warn("auth disabled, all endpoints are open")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q (expected header, jwt or none)", mode)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
