// Package worker drains queued write-back tasks and persists transformed
// variants through the storage gateway.
package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/imgedge/imgedge/internal/config"
	"github.com/imgedge/imgedge/internal/writeback"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger  *log.Logger
	server  *asynq.Server
	writer  writeback.ObjectWriter
	metrics *metrics
	tracer  trace.Tracer
}

func NewServer(logger *log.Logger, queueCfg config.QueueConfig, writer writeback.ObjectWriter) (*Server, error) {
	if writer == nil {
		return nil, fmt.Errorf("object writer is required")
	}

	concurrency := queueCfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		writer:  writer,
		metrics: newMetrics(),
		tracer:  otel.Tracer("imgedge/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(writeback.TypeStoreVariant, s.handleStoreVariant)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleStoreVariant(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	v, err := writeback.ParseStoreVariantPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.store_variant", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("variant.key", v.Key),
		attribute.String("variant.content_type", v.ContentType),
		attribute.Int("variant.bytes", len(v.Data)),
	)
	defer span.End()
	defer func() {
		s.metrics.taskDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.tasksTotal.WithLabelValues(outcome).Inc()
	}()

	s.metrics.activeTasks.Inc()
	defer s.metrics.activeTasks.Dec()

	if err := s.writer.StoreTransformed(ctx, v.Key, v.Data, v.ContentType, v.CacheControl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store variant failed")
		return fmt.Errorf("store variant %s: %w", v.Key, err)
	}

	s.logger.Printf("stored variant key=%s bytes=%d", v.Key, len(v.Data))
	s.metrics.bytesWrittenTotal.Add(float64(len(v.Data)))

	outcome = "succeeded"
	span.SetStatus(codes.Ok, "stored")
	return nil
}
