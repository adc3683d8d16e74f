package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ecom-server/internal/account"
	"ecom-server/internal/config"
	"ecom-server/internal/db"
	"ecom-server/internal/httpjson"
	"ecom-server/internal/mailer"
	"ecom-server/internal/maintenance"
	"ecom-server/internal/media"
	"ecom-server/internal/observability"
	"ecom-server/internal/order"
	"ecom-server/internal/payment"
	"ecom-server/internal/product"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Port    string
	Close   func() error
}

// Build wires the whole service and returns its root handler. Both the
// long-running binary and the serverless entry point call it.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()
	respond := &httpjson.Responder{Development: !cfg.Production()}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokens, err := account.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	var accountMailer account.Mailer
	if cfg.SMTPHost != "" && cfg.SenderEmail != "" {
		accountMailer, err = mailer.New(mailer.Config{
			SenderName:  cfg.SenderName,
			SenderEmail: cfg.SenderEmail,
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			ClientURL:   cfg.ClientURL,
			BaseURL:     cfg.BaseURL,
		})
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init mailer: %w", err)
		}
	} else {
		logger.Warn("smtp_not_configured", map[string]any{"fallback": "discard"})
		accountMailer = &mailer.Discard{Logger: logger}
	}

	accountRepo := account.NewRepository(database)
	accountService := account.NewService(accountRepo, tokens, account.NewBcryptHasher(), accountMailer, logger, cfg.AdminSecret, cfg.LockoutMaxFailures)
	cookies := account.NewCookieBaker(cfg.Production(), tokens.AccessTTL(), tokens.RefreshTTL())
	session := account.NewSessionMiddleware(accountService, cookies, respond)
	accountHandler := account.NewHandler(accountService, cookies, respond)
	accountAdminHandler := account.NewAdminHandler(accountService, respond)
	loginLimiter := account.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow, respond)

	cloudinaryClient, err := media.NewCloudinary(cfg.CloudinaryURL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	stripeClient, err := payment.NewStripeClient(cfg.StripeSecretKey)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init stripe: %w", err)
	}

	productRepo := product.NewRepository(database)
	productHandler := product.NewHandler(productRepo, respond)
	productAdminHandler := product.NewAdminHandler(productRepo, cloudinaryClient, respond, logger)

	orderRepo := order.NewRepository(database)
	orderHandler := order.NewHandler(orderRepo, respond)
	orderAdminHandler := order.NewAdminHandler(orderRepo, respond)

	paymentHandler := payment.NewHandler(stripeClient, productRepo, orderRepo, cfg.ClientURL, respond)
	mediaHandler := media.NewHandler(cloudinaryClient, accountRepo, productRepo, respond, logger)
	cleanupHandler := maintenance.NewCleanupHandler(accountRepo, logger, respond, cfg.CronSecret)

	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", accountHandler.Register)
	mux.Handle("POST /api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(accountHandler.Login)))
	mux.HandleFunc("POST /api/v1/auth/logout", accountHandler.Logout)
	mux.HandleFunc("POST /api/v1/auth/verify-email", accountHandler.VerifyEmail)
	mux.HandleFunc("POST /api/v1/auth/forget", accountHandler.Forget)
	mux.HandleFunc("PUT /api/v1/auth/forget-password", accountHandler.ForgetPassword)
	mux.Handle("PUT /api/v1/auth/reset-password", session.Protect(http.HandlerFunc(accountHandler.ResetPassword)))
	mux.Handle("GET /api/v1/auth/verify-auth", session.Protect(http.HandlerFunc(accountHandler.VerifyAuth)))
	mux.Handle("PUT /api/v1/auth/deactivate", session.Protect(http.HandlerFunc(accountHandler.Deactivate)))

	// Catalog
	mux.HandleFunc("GET /api/v1/products", productHandler.List)
	mux.HandleFunc("GET /api/v1/products/{id}", productHandler.Get)

	// Checkout
	mux.Handle("POST /api/v1/products/checkout", session.Protect(http.HandlerFunc(paymentHandler.Checkout)))
	mux.Handle("POST /api/v1/products/confirm-order", session.Protect(http.HandlerFunc(paymentHandler.ConfirmOrder)))
	mux.Handle("POST /api/v1/products/check-stripeId", session.Protect(http.HandlerFunc(paymentHandler.CheckSession)))

	// Orders
	mux.Handle("GET /api/v1/orders", session.Protect(http.HandlerFunc(orderHandler.List)))
	mux.Handle("GET /api/v1/orders/{id}", session.Protect(http.HandlerFunc(orderHandler.Get)))

	// Media
	mux.Handle("POST /api/v1/files/profile", session.Protect(http.HandlerFunc(mediaHandler.UploadProfileImage)))
	mux.Handle("DELETE /api/v1/files/product-image", session.AdminOnly(http.HandlerFunc(mediaHandler.DeleteProductImage)))

	// Admin
	mux.Handle("GET /api/v1/admin/products", session.AdminOnly(http.HandlerFunc(productAdminHandler.ListOwned)))
	mux.Handle("POST /api/v1/admin/products", session.AdminOnly(http.HandlerFunc(productAdminHandler.Create)))
	mux.Handle("PUT /api/v1/admin/products/{id}", session.AdminOnly(http.HandlerFunc(productAdminHandler.Update)))
	mux.Handle("DELETE /api/v1/admin/products/{id}", session.AdminOnly(http.HandlerFunc(productAdminHandler.Delete)))
	mux.Handle("GET /api/v1/admin/product-sales", session.AdminOnly(http.HandlerFunc(orderAdminHandler.ProductSales)))
	mux.Handle("GET /api/v1/admin/orders", session.AdminOnly(http.HandlerFunc(orderAdminHandler.List)))
	mux.Handle("GET /api/v1/admin/orders/{id}", session.AdminOnly(http.HandlerFunc(orderAdminHandler.Get)))
	mux.Handle("PUT /api/v1/admin/orders/{id}", session.AdminOnly(http.HandlerFunc(orderAdminHandler.UpdateStatus)))
	mux.Handle("DELETE /api/v1/admin/orders/{id}", session.AdminOnly(http.HandlerFunc(orderAdminHandler.Delete)))
	mux.Handle("GET /api/v1/admin/users", session.AdminOnly(http.HandlerFunc(accountAdminHandler.ListUsers)))
	mux.Handle("PUT /api/v1/admin/users/ban", session.AdminOnly(http.HandlerFunc(accountAdminHandler.SetBan)))

	// Ops
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	handler := observability.RecoverMiddleware(logger, !cfg.Production(),
		observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Port:    cfg.Port,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
