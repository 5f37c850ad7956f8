package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/solidity-audit/internal/application"
	appaudits "github.com/bryanwahyu/solidity-audit/internal/application/audits"
	"github.com/bryanwahyu/solidity-audit/internal/config"
	aiclient "github.com/bryanwahyu/solidity-audit/internal/infra/ai/openai"
	"github.com/bryanwahyu/solidity-audit/internal/infra/ai/prompt"
	"github.com/bryanwahyu/solidity-audit/internal/infra/cache"
	mysqlp "github.com/bryanwahyu/solidity-audit/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/solidity-audit/internal/infra/db/postgres"
	"github.com/bryanwahyu/solidity-audit/internal/infra/httpserver"
	smtpmail "github.com/bryanwahyu/solidity-audit/internal/infra/mail/smtp"
	minioStore "github.com/bryanwahyu/solidity-audit/internal/infra/storage"
	"github.com/bryanwahyu/solidity-audit/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// connect database (mysql default, postgres optional)
	var db *sql.DB
	svc := &appaudits.Service{
		Prompts:          prompt.NewBuilder(cfg.Audit.MaxContractBytes),
		Clock:            application.SystemClock{},
		Log:              logger,
		Model:            cfg.OpenAI.Model,
		MaxContractBytes: cfg.Audit.MaxContractBytes,
	}
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("postgres connect error", zap.Error(err))
		}
		svc.Repo = postgresp.NewReportRepository(db)
		svc.Errors = postgresp.NewAuditErrorRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal("mysql connect error", zap.Error(err))
		}
		svc.Repo = mysqlp.NewReportRepository(db)
		svc.Errors = mysqlp.NewAuditErrorRepository(db)
	}
	defer db.Close()

	// init analysis client
	analyzer, err := aiclient.NewClient(aiclient.Options{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxAttempts: cfg.OpenAI.MaxAttempts,
		CallTimeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal("openai init error", zap.Error(err))
	}
	svc.Analyzer = analyzer

	// smtp transport is optional; without it email export stays disabled
	if cfg.SMTP.Host != "" {
		mailer, err := smtpmail.New(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From,
			time.Duration(cfg.SMTP.TimeoutSeconds)*time.Second)
		if err != nil {
			logger.Fatal("smtp init error", zap.Error(err))
		}
		svc.Mailer = mailer
	}

	// init minio (optional artifact mirror of report text)
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init error", zap.Error(err))
		}
		svc.Artifacts = store
	}

	// init redis completion cache (optional)
	if cfg.Redis.Enabled {
		cc, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour)
		if err != nil {
			logger.Fatal("redis init error", zap.Error(err))
		}
		defer cc.Close()
		svc.Cache = cc
	}

	// init router + middleware chain
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.RequestLogger(logger))
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		// Audit sessions hold one synchronous model call; the write timeout
		// must cover the full retry budget.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.OpenAI.TimeoutSeconds*cfg.OpenAI.MaxAttempts+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
