package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/imgedge/imgedge/internal/config"
	"github.com/imgedge/imgedge/internal/storage"
	"github.com/imgedge/imgedge/internal/telemetry"
	"github.com/imgedge/imgedge/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[writeback] ", log.LstdFlags|log.Lmsgprefix)

	if !cfg.Queue.Enabled() {
		logger.Fatal("REDIS_ADDR is required to drain the write-back queue")
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "imgedge-writeback-worker",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

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
	if !gateway.WriteThroughEnabled() {
		logger.Fatal("IMGEDGE_TRANSFORMED_BUCKET is required for the write-back worker")
	}

	srv, err := worker.NewServer(logger, cfg.Queue, gateway)
	if err != nil {
		logger.Fatalf("worker init failed: %v", err)
	}

	go func() {
		logger.Printf("metrics listening on %s", cfg.Queue.MetricsAddr)
		if err := http.ListenAndServe(cfg.Queue.MetricsAddr, srv.MetricsHandler()); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting write-back worker concurrency=%d queue=%s redis=%s",
		cfg.Queue.Concurrency,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}
