package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imgedge/imgedge/internal/config"
	"github.com/imgedge/imgedge/internal/engine"
	"github.com/imgedge/imgedge/internal/handler"
	"github.com/imgedge/imgedge/internal/storage"
	"github.com/imgedge/imgedge/internal/store"
	"github.com/imgedge/imgedge/internal/telemetry"
	"github.com/imgedge/imgedge/internal/writeback"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[handler] ", log.LstdFlags|log.Lmsgprefix)

	if cfg.Handler.Secret == "" {
		logger.Println("warning: IMGEDGE_ORIGIN_SECRET is empty, every request without the secret header will be accepted")
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "imgedge-handler",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	if err := engine.Startup(); err != nil {
		logger.Fatalf("transform engine startup failed: %v", err)
	}
	defer engine.Shutdown()

	transformer, err := engine.New()
	if err != nil {
		logger.Fatalf("transform engine init failed: %v", err)
	}

	gateway, err := storage.NewGateway(storage.Config{
		Endpoint:          cfg.Storage.Endpoint,
		Access:            cfg.Storage.AccessKey,
		Secret:            cfg.Storage.SecretKey,
		OriginalBucket:    cfg.Storage.OriginalBucket,
		TransformedBucket: cfg.Storage.TransformedBucket,
		UseSSL:            cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage gateway init failed: %v", err)
	}

	wb, closeWriteback := buildWriteback(logger, cfg, gateway)
	defer closeWriteback()

	var usage store.UsageStore
	if cfg.Database.DSN != "" {
		pgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := store.NewPostgresUsageStore(pgCtx, cfg.Database.DSN)
		cancel()
		if err != nil {
			logger.Fatalf("usage store init failed: %v", err)
		}
		defer pg.Close()
		usage = pg
		logger.Println("usage accounting enabled")
	}

	app := handler.NewServer(logger, gateway, transformer, wb, usage, cfg.Handler)

	httpServer := &http.Server{
		Addr:         cfg.Handler.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.Handler.MetricsAddr,
		Handler: app.MetricsHandler(),
	}

	go func() {
		logger.Printf("listening on %s", cfg.Handler.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	go func() {
		logger.Printf("metrics listening on %s", cfg.Handler.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Printf("metrics shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

// buildWriteback picks the write-back strategy: disabled without a
// transformed-image bucket, queued through asynq when redis is configured,
// otherwise inline background writes from this process.
func buildWriteback(logger *log.Logger, cfg config.Config, gateway *storage.Gateway) (writeback.Store, func()) {
	if !gateway.WriteThroughEnabled() {
		logger.Println("write-through disabled, variants are recomputed on every cache miss")
		return nil, func() {}
	}

	if cfg.Queue.Enabled() && cfg.Queue.Mode == "queue" {
		logger.Printf("write-back via queue=%s redis=%s", cfg.Queue.Name, cfg.Queue.RedisAddr)
		q := writeback.NewQueue(logger, cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}
	}

	var dedupe writeback.Deduper
	if cfg.Queue.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		d, err := writeback.NewRedisDedupe(rdb, "", 0)
		if err != nil {
			logger.Fatalf("write dedupe init failed: %v", err)
		}
		dedupe = d
	}

	logger.Println("write-back inline")
	inline := writeback.NewInline(logger, gateway, dedupe, 30*time.Second)
	return inline, inline.Flush
}
