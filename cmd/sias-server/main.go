// Command sias-server runs the records portal API.
//
// Configuration is read from config.yaml (/etc/sias, $HOME/.sias or the
// working directory) and SIAS_* environment variables, for example:
//
//	SIAS_PENDING_SECRET=... SIAS_AUDIT_KEY=<64 hex> SIAS_REDIS_ADDR=localhost:6379 sias-server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
	"github.com/MrEthical07/sias/httpapi"
	"github.com/MrEthical07/sias/metrics/export/prometheus"
	"github.com/MrEthical07/sias/middleware"
	"github.com/MrEthical07/sias/sqlstore"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sias-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(viper.New())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- REDIS --------
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	// -------- DATABASE --------
	store, err := sqlstore.Open(ctx, cfg.storeConfig())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// -------- ENGINE --------
	var captcha sias.CaptchaVerifier = sias.StaticCaptcha(cfg.CaptchaAcceptAll)
	if cfg.CaptchaAcceptAll {
		logger.Warn("captcha verification disabled")
	}
	engine, err := sias.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithStore(store).
		WithLogger(logger.Named("engine")).
		WithMailer(sias.LogMailer{Logger: logger.Named("mail"), BaseURL: cfg.BaseURL}).
		WithCaptcha(captcha).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Port), zap.Bool("production", cfg.Production))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	return nil
}

func newRouter(cfg *serverConfig, engine *sias.Engine, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(middleware.ClientIP(cfg.TrustProxy)))
	router.Use(loggingMiddleware(logger.Named("http")))

	httpapi.SetupRoutes(router, httpapi.NewHandler(engine, httpapi.Options{
		Cookies: middleware.Cookies{Secure: cfg.Production, Domain: cfg.CookieDomain},
		Logger:  logger.Named("http"),
	}))

	if cfg.MetricsEnabled {
		var metrics http.Handler = prometheus.NewExporter(engine).Handler()
		if cfg.MetricsProtected {
			metrics = middleware.RequireSession(engine)(middleware.RequireRole(access.RoleAdmin)(metrics))
		}
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
