// Package handler is the transform origin: it authenticates edge requests,
// parses the operations token, runs the transform engine and assembles the
// response, optionally persisting the variant for future cache hits.
package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/imgedge/imgedge/internal/config"
	"github.com/imgedge/imgedge/internal/engine"
	"github.com/imgedge/imgedge/internal/id"
	"github.com/imgedge/imgedge/internal/ops"
	"github.com/imgedge/imgedge/internal/store"
	"github.com/imgedge/imgedge/internal/writeback"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SecretHeader carries the shared secret the edge router attaches to every
// origin request.
const SecretHeader = "x-origin-secret-header"

// Gateway is the slice of the storage gateway the handler reads from.
type Gateway interface {
	FetchOriginal(ctx context.Context, key string) (data []byte, contentType string, err error)
}

type Server struct {
	logger       *log.Logger
	gateway      Gateway
	transformer  engine.Transformer
	writeback    writeback.Store  // nil disables write-through
	usage        store.UsageStore // nil disables usage accounting
	secret       string
	cacheControl string
	timingLog    bool
	timeout      time.Duration
	metrics      *metrics
	tracer       trace.Tracer
	mux          *http.ServeMux
}

func NewServer(
	logger *log.Logger,
	gateway Gateway,
	transformer engine.Transformer,
	wb writeback.Store,
	usage store.UsageStore,
	cfg config.HandlerConfig,
) *Server {
	s := &Server{
		logger:       logger,
		gateway:      gateway,
		transformer:  transformer,
		writeback:    wb,
		usage:        usage,
		secret:       cfg.Secret,
		cacheControl: cfg.CacheControl,
		timingLog:    cfg.TimingLog,
		timeout:      cfg.RequestTimeout,
		metrics:      newMetrics(),
		tracer:       otel.Tracer("imgedge/handler"),
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("/", s.handleTransform)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withTracing(h)
	h = s.metrics.withHTTPMetrics(h)
	return h
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.metricsHandler()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, "ok")
}

// handleTransform walks the gates in fixed order: auth, method, path, fetch,
// transform, write-back, respond. Each gate short-circuits with a fixed
// status and a generic body; diagnostics stay in the server log.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	reqID := id.New()

	if subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(s.secret)) != 1 {
		s.metrics.authRejectedTotal.Inc()
		s.logger.Printf("auth rejected request_id=%s", reqID)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if r.Method != http.MethodGet {
		s.logger.Printf("method rejected request_id=%s method=%s", reqID, r.Method)
		http.Error(w, "method not allowed", http.StatusBadRequest)
		return
	}

	originalPath, token, err := splitTransformPath(r.URL.Path)
	if err != nil {
		s.logger.Printf("bad request path request_id=%s path=%s err=%v", reqID, r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	fetchStart := time.Now()
	original, srcContentType, err := s.fetchOriginal(ctx, originalPath)
	fetchElapsed := time.Since(fetchStart)
	s.metrics.stageDuration.WithLabelValues("fetch").Observe(fetchElapsed.Seconds())
	if err != nil {
		s.logger.Printf("fetch failed request_id=%s key=%s err=%v", reqID, originalPath, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	spec := ops.Parse(token)
	if len(spec.Ignored) > 0 {
		s.logger.Printf("ignored operations request_id=%s segments=%s", reqID, strings.Join(spec.Ignored, ","))
	}

	transformStart := time.Now()
	transformed, contentType, err := s.transform(ctx, original, srcContentType, spec)
	transformElapsed := time.Since(transformStart)
	s.metrics.stageDuration.WithLabelValues("transform").Observe(transformElapsed.Seconds())
	if err != nil {
		s.logger.Printf("transform failed request_id=%s key=%s token=%s err=%v", reqID, originalPath, token, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeStart := time.Now()
	if s.writeback != nil {
		s.writeback.Store(writeback.Variant{
			Key:          ops.CacheKey(originalPath, token),
			Data:         transformed,
			ContentType:  contentType,
			CacheControl: s.cacheControl,
		})
		s.metrics.writebackDispatchedTotal.Inc()
	}
	writeElapsed := time.Since(writeStart)

	s.recordUsage(ctx, reqID, ops.CacheKey(originalPath, token), len(original), len(transformed), contentType, fetchElapsed+transformElapsed)

	if s.timingLog {
		s.logger.Printf(
			"timing request_id=%s key=%s fetch=%s transform=%s write=%s",
			reqID, originalPath, fetchElapsed, transformElapsed, writeElapsed,
		)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", s.cacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(transformed); err != nil {
		s.logger.Printf("response write failed request_id=%s err=%v", reqID, err)
	}
}

func (s *Server) fetchOriginal(ctx context.Context, key string) ([]byte, string, error) {
	ctx, span := s.tracer.Start(ctx, "handler.fetch_original")
	span.SetAttributes(attribute.String("image.key", key))
	defer span.End()

	return s.gateway.FetchOriginal(ctx, key)
}

func (s *Server) transform(ctx context.Context, input []byte, srcContentType string, spec ops.TransformSpec) ([]byte, string, error) {
	ctx, span := s.tracer.Start(ctx, "handler.transform")
	span.SetAttributes(
		attribute.String("transform.format", string(spec.Format)),
		attribute.Int("transform.width", spec.Width),
		attribute.Int("transform.height", spec.Height),
	)
	defer span.End()

	return s.transformer.Transform(ctx, input, srcContentType, spec)
}

func (s *Server) recordUsage(ctx context.Context, reqID, cacheKey string, sourceBytes, outputBytes int, contentType string, compute time.Duration) {
	if s.usage == nil {
		return
	}

	computeTimeMS := compute.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	err := s.usage.CreateUsageLog(ctx, store.UsageLog{
		CacheKey:      cacheKey,
		SourceBytes:   sourceBytes,
		OutputBytes:   outputBytes,
		ContentType:   contentType,
		ComputeTimeMS: computeTimeMS,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Printf("usage log write failed request_id=%s err=%v", reqID, err)
	}
}

// splitTransformPath splits a request path into the original image key and
// the operations token. The first segment is the routing prefix the edge
// matched on; it carries no storage meaning and is discarded.
func splitTransformPath(path string) (originalPath, token string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 3 {
		return "", "", errors.New("expected path format /<prefix>/<image path>/<operations token>")
	}
	for _, seg := range segs {
		if seg == "" {
			return "", "", fmt.Errorf("empty path segment in %q", path)
		}
	}

	token = segs[len(segs)-1]
	originalPath = strings.Join(segs[1:len(segs)-1], "/")
	return originalPath, token, nil
}
