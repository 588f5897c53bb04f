package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docroute-api/internal/auth"
	"docroute-api/internal/claims"
	"docroute-api/internal/config"
	"docroute-api/internal/database"
	"docroute-api/internal/http/handler"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/ratelimit"
	"docroute-api/internal/repo"
	"docroute-api/internal/service"
	"docroute-api/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// idpIssuer is the issuer the external identity provider signs RS256 tokens
// with. Only wired when JWT_PUBLIC_KEY_IDP_V1 is configured.
const idpIssuer = "docroute-idp"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the Docroute API HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New("docroute-api", "info")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info(ctx, "starting docroute api",
		zap.String("version", "1.0.0"),
		zap.String("env", cfg.AppEnv),
	)

	log.Info(ctx, "running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations completed successfully")

	telemetry.Init()

	log.Info(ctx, "connecting to database")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info(ctx, "database connected")

	log.Info(ctx, "connecting to redis")
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info(ctx, "redis connected")

	log.Info(ctx, "initializing JWT authentication")
	keyStore := auth.NewKeyStore()

	// JWT_HS256_SECRET must be Base64-encoded and decode to >= 32 bytes.
	secretBytes, err := base64.StdEncoding.DecodeString(cfg.JWTHS256Secret)
	if err != nil {
		return fmt.Errorf("JWT_HS256_SECRET must be valid Base64-encoded: %w", err)
	}
	if len(secretBytes) < 32 {
		return fmt.Errorf("JWT_HS256_SECRET decoded bytes must be at least 32 bytes (256 bits), got %d bytes", len(secretBytes))
	}

	allowedIssuers := cfg.GetAllowedIssuers()
	for _, issuer := range allowedIssuers {
		keyStore.LoadHS256Key(issuer, "v1", secretBytes)
	}

	if cfg.JWTPublicKeyIdPV1 != "" {
		if err := keyStore.LoadRS256Key(idpIssuer, "v1", cfg.JWTPublicKeyIdPV1); err != nil {
			return fmt.Errorf("failed to load identity provider public key: %w", err)
		}
	}

	clockSkew := time.Duration(cfg.JWTClockSkewSeconds) * time.Second

	resolver := auth.NewKeyResolver(allowedIssuers, []string{cfg.JWTAudience})
	for _, issuer := range allowedIssuers {
		resolver.RegisterValidator(issuer, auth.NewHS256Validator(keyStore, issuer, clockSkew))
	}

	if cfg.JWTPublicKeyIdPV1 != "" {
		resolver.RegisterValidator(idpIssuer, auth.NewRS256Validator(keyStore, idpIssuer, clockSkew))

		hasIdPIssuer := false
		for _, issuer := range allowedIssuers {
			if issuer == idpIssuer {
				hasIdPIssuer = true
				break
			}
		}
		if !hasIdPIssuer {
			allowedIssuers = append(allowedIssuers, idpIssuer)
		}
	}

	log.Info(ctx, "JWT authentication initialized",
		zap.Strings("allowed_issuers", allowedIssuers),
		zap.Int("clock_skew_seconds", cfg.JWTClockSkewSeconds),
	)

	s2sStore := auth.NewS2STokenStore()
	if cfg.S2STokenIdP != "" {
		s2sStore.RegisterToken(cfg.S2STokenIdP, "identity-provider")
		log.Info(ctx, "S2S token registered", zap.String("client", "identity-provider"))
	}

	// Claims Store: the provider's admin API when configured, Redis otherwise.
	var claimsStore claims.Store
	if cfg.ClaimsAdminURL != "" {
		claimsStore = claims.NewAdminAPIStore(cfg.ClaimsAdminURL, cfg.S2STokenIdP)
		log.Info(ctx, "claims store: provider admin API", zap.String("url", cfg.ClaimsAdminURL))
	} else {
		claimsStore = claims.NewRedisStore(redisClient)
		log.Info(ctx, "claims store: redis")
	}

	idempotencyRepo := repo.NewIdempotencyRepo(pool)
	profileRepo := repo.NewProfileRepository(pool)
	officeRepo := repo.NewOfficeRepository(pool)
	documentRepo := repo.NewDocumentRepository(pool)
	auditRepo := repo.NewAuditRepo(pool)

	roleService := service.NewRoleService(profileRepo, claimsStore, auditRepo, cfg.RootAdminEmail, log)
	documentService := service.NewDocumentService(documentRepo, officeRepo, auditRepo, log)
	officeService := service.NewOfficeService(officeRepo, auditRepo, log)
	notificationService := service.NewNotificationService(documentRepo, profileRepo, log)
	auditService := service.NewAuditService(auditRepo)

	userHandler := handler.NewUserHandler(roleService)
	documentHandler := handler.NewDocumentHandler(documentService)
	officeHandler := handler.NewOfficeHandler(officeService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	auditHandler := handler.NewAuditHandler(auditService)
	identityHandler := handler.NewIdentityHandler(roleService)

	rateLimiter := ratelimit.NewRedisRateLimiter(redisClient, telemetry.RateLimitRejections())

	r := buildRouter(RouterDeps{
		Cfg:                 cfg,
		Log:                 log,
		Resolver:            resolver,
		S2SStore:            s2sStore,
		IdempotencyRepo:     idempotencyRepo,
		RateLimiter:         rateLimiter,
		EnableMetrics:       true,
		Pool:                pool,
		UserHandler:         userHandler,
		DocumentHandler:     documentHandler,
		OfficeHandler:       officeHandler,
		NotificationHandler: notificationHandler,
		AuditHandler:        auditHandler,
		IdentityHandler:     identityHandler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(ctx, "starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete")
	return nil
}
