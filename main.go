// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/catalog"
	"sentinelshop/internal/checkout"
	"sentinelshop/internal/cleanup"
	"sentinelshop/internal/config"
	"sentinelshop/internal/logger"
	"sentinelshop/internal/middleware"
	"sentinelshop/internal/shop"
	"sentinelshop/internal/snapshot"
	"sentinelshop/internal/telemetry"
)

const version = "1.0.0"

type App struct {
	addr          string
	handler       http.Handler
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()

	// Step 2: Setup logging
	loggerConfig := config.LoggerConfig()
	if err := logger.SetupLogger(loggerConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment loaded. Logger ready.")

	// Step 3: Load Stripe configuration. Without a key the server still
	// serves the catalog and cart; checkout answers with a configuration error.
	if err := config.LoadStripeConfig(); err != nil {
		logger.LogWarn("Stripe not configured: %v", err)
	}
	logger.SetTrustProxy(config.TrustProxyHeaders())
	config.LoadCORSConfig()
	config.LoadSiteConfig()
	config.LogCurrentEnvironment()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 4: Tracing
	shutdownTracing, err := telemetry.InitTracerProvider(ctx, config.OTLPEndpoint(), version)
	if err != nil {
		logger.LogFatal("Failed to initialize tracing: %v", err)
	}

	// Step 5: Catalog
	products := catalog.NewService()
	if path := config.CatalogFile(); path != "" {
		if err := products.LoadFromFile(path); err != nil {
			logger.LogFatal("Failed to load catalog: %v", err)
		}
	}

	// Step 6: Snapshot store
	snapshots, err := snapshot.Open(ctx, snapshot.Options{
		Backend:   config.SnapshotBackend(),
		DBPath:    config.SnapshotDBPath(),
		RedisAddr: config.RedisAddr(),
		TTL:       config.SnapshotTTL(),
	})
	if err != nil {
		logger.LogFatal("Failed to open snapshot store: %v", err)
	}
	logger.LogInfo("Snapshot store ready (%s)", config.SnapshotBackend())

	// Step 7: Checkout handoff
	sessions := checkout.NewStripeSessions(checkout.StripeConfig{
		SecretKey: config.StripeSecretKey(),
		APIBase:   config.StripeAPIBase(),
		Logger:    logger.Logger(),
	})
	if sessions.Configured() {
		if sessions.Live() {
			logger.LogInfo("Stripe checkout in live mode")
		} else {
			logger.LogInfo("Stripe checkout in test mode")
		}
	}
	handoff := checkout.NewHandoff(sessions, checkout.Settings{
		Currency: config.CheckoutCurrency(),
		Country:  config.CheckoutCountry(),
		Locale:   config.CheckoutLocale(),
		Timeout:  config.CheckoutTimeout(),
	})

	carts := cart.NewRegistry()
	limiter := middleware.NewRateLimiter(config.CheckoutRateInterval())

	server := shop.NewServer(shop.Options{
		Carts:          carts,
		Catalog:        products,
		Handoff:        handoff,
		Snapshots:      snapshots,
		Limiter:        limiter,
		PublicSiteURL:  config.PublicSiteURL(),
		FallbackOrigin: config.FallbackOrigin(),
		AllowedOrigin:  config.AllowedOrigin,
		SecureCookies:  config.SecureCookies(),
	})

	// Step 8: Start background tasks
	cleanupDone := cleanup.StartCleanupRoutine(ctx, cleanup.Config{
		Carts:       carts,
		CartIdleTTL: config.CartIdleTTL(),
		Snapshots:   snapshots,
		SnapshotTTL: config.SnapshotTTL(),
		Limiter:     limiter,
		Interval:    config.CleanupInterval(),
	})

	// Step 9: Run server
	app := &App{
		addr:    config.ServerAddress(),
		handler: server.Handler(),
	}
	app.Run()

	cancel()
	<-cleanupDone

	if err := snapshots.Close(); err != nil {
		logger.LogError("Failed to close snapshot store: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.LogError("Tracer shutdown error: %v", err)
	}
}

// Run starts the HTTP server and blocks until a shutdown signal is handled.
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a separate goroutine
	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	// Wait for a shutdown signal
	<-stop
	logger.LogInfo("Shutdown signal received")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// Handler assembles the server-level middleware around the API handler
func (a *App) Handler() http.Handler {
	handler := a.handler

	handler = a.trackConnections(handler)
	handler = withTimeout(handler, 15*time.Second)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, `{"code":"timeout","error":"Tiempo de espera agotado"}`)
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}
