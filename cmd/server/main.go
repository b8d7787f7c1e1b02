package main

import (
	"database/sql"
	"net/http"
	"time"

	"quickpay-bridge/internal/config"
	"quickpay-bridge/internal/db"
	"quickpay-bridge/internal/hooks"
	"quickpay-bridge/internal/logger"
	"quickpay-bridge/internal/metrics"
	"quickpay-bridge/internal/middleware"
	"quickpay-bridge/internal/order"
	"quickpay-bridge/internal/quickpay"
	"quickpay-bridge/internal/quickpay/webhook"

	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(addr string, handler http.Handler) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		return srv.ListenAndServe()
	}
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("Server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	handler := newServer(cfg, database)

	logger.L().Info("QuickPay bridge listening", zap.String("port", cfg.AppPort))
	return startServerFunc(":"+cfg.AppPort, handler)
}

// routes groups the handlers setupRouter mounts.
type routes struct {
	callback     http.HandlerFunc
	startPayment http.HandlerFunc
	listPayments http.HandlerFunc
	metrics      http.Handler
}

// newServer wires repositories, the shop integration and the HTTP surface.
func newServer(cfg *config.Config, database *sql.DB) http.Handler {
	orderRepo := order.NewRepository(database)
	quickpayRepo := quickpay.NewRepository(database)

	shop := order.NewIntegration(orderRepo, quickpayRepo, cfg.Quickpay,
		order.WithCommentTemplate(cfg.CommentTemplate),
	)

	registry := hooks.NewRegistry()
	registry.MustRegister(cfg.ShopIntegration, shop)

	stats := &metrics.Callbacks{}
	callbackHandler := webhook.NewHandler(registry, quickpayRepo, stats)
	orderHandler := order.NewHandler(orderRepo, shop, cfg.ShopIntegration)

	limiter := middleware.NewLimiter()
	go limiter.RunCleanup(time.Minute, nil)

	requireAdmin := middleware.RequireAdmin([]byte(cfg.JWTSecret))

	return setupRouter(routes{
		callback:     limiter.Middleware(http.HandlerFunc(callbackHandler.CallbackHandler)).ServeHTTP,
		startPayment: limiter.Middleware(http.HandlerFunc(orderHandler.StartPayment)).ServeHTTP,
		listPayments: requireAdmin(limiter.Middleware(http.HandlerFunc(orderHandler.ListPayments))).ServeHTTP,
		metrics:      requireAdmin(metrics.Handler(stats)),
	})
}

func setupRouter(r routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("POST /quickpay/callback/{integration}", r.callback)
	mux.HandleFunc("POST /orders/{number}/quickpay", r.startPayment)
	mux.HandleFunc("GET /admin/orders/{number}/payments", r.listPayments)
	mux.Handle("GET /metrics", r.metrics)

	return logger.RequestIDMiddleware(logger.LoggingMiddleware(mux))
}
