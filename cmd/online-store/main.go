package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-online-store/internal/cache"
	"github.com/pribylovaa/go-online-store/internal/config"
	storehttp "github.com/pribylovaa/go-online-store/internal/http"
	"github.com/pribylovaa/go-online-store/internal/mailer"
	"github.com/pribylovaa/go-online-store/internal/service"
	"github.com/pribylovaa/go-online-store/internal/storage/minio"
	"github.com/pribylovaa/go-online-store/internal/storage/mongo"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting online-store", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer dbCancel()

	db, err := mongo.New(dbCtx, cfg.DB.URL)
	if err != nil {
		log.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := db.Close(closeCtx); cerr != nil {
			log.Warn("storage_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	log.Info("storage_initialized")

	svc := service.New(db, cfg.Auth, cfg.Limits)

	// Опциональные подсистемы: пустые значения в конфиге их отключают.
	if cfg.S3.Endpoint != "" {
		images, err := minio.New(rootCtx, cfg.S3)
		if err != nil {
			log.Error("images_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		svc.SetImagesStorage(images)
		log.Info("images_storage_initialized")
	}

	if cfg.Redis.URL != "" {
		tcache, err := cache.NewRedisCache(cfg.Redis.URL, "")
		if err != nil {
			log.Error("token_cache_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		defer func() {
			if cerr := tcache.Close(); cerr != nil {
				log.Warn("token_cache_close_failed", slog.String("err", cerr.Error()))
			}
		}()

		svc.SetTokenCache(tcache)
		log.Info("token_cache_initialized")
	}

	if cfg.SMTP.Host != "" {
		smtp, err := mailer.NewSMTP(cfg.SMTP)
		if err != nil {
			log.Error("mailer_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		svc.SetMailer(smtp)
		log.Info("mailer_initialized")
	} else {
		svc.SetMailer(mailer.NopMailer{Log: log})
	}

	// Фоновая уборка просроченных записей о токенах: TTL-индекс Mongo
	// делает основную работу, janitor подчищает при отключённом TTL
	// (например, в тестовых окружениях).
	go tokenJanitor(rootCtx, db, log)

	apiHandler := storehttp.NewRouter(svc, storehttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

// tokenJanitor раз в час удаляет просроченные записи о токенах.
func tokenJanitor(ctx context.Context, db *mongo.Mongo, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.DeleteExpiredTokens(ctx, time.Now().UTC()); err != nil {
				log.Warn("token_janitor_failed", slog.String("err", err.Error()))
			}
		}
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
