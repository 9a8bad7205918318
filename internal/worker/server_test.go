package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/imgedge/imgedge/internal/writeback"
	"go.opentelemetry.io/otel"
)

type fakeWriter struct {
	calls int
	err   error
	key   string
}

func (w *fakeWriter) StoreTransformed(_ context.Context, key string, _ []byte, _, _ string) error {
	w.calls++
	w.key = key
	return w.err
}

func newTestServer(writer *fakeWriter) *Server {
	return &Server{
		logger:  log.New(io.Discard, "", 0),
		writer:  writer,
		metrics: newMetrics(),
		tracer:  otel.Tracer("imgedge/worker-test"),
	}
}

func TestHandleStoreVariantWrites(t *testing.T) {
	writer := &fakeWriter{}
	s := newTestServer(writer)

	task, err := writeback.NewStoreVariantTask(writeback.Variant{
		Key:          "rio/1.jpg/width=100",
		Data:         []byte("payload"),
		ContentType:  "image/jpeg",
		CacheControl: "max-age=31536000",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := s.handleStoreVariant(context.Background(), task); err != nil {
		t.Fatalf("handleStoreVariant returned error: %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("expected one write, got %d", writer.calls)
	}
	if writer.key != "rio/1.jpg/width=100" {
		t.Fatalf("unexpected key: %s", writer.key)
	}
}

func TestHandleStoreVariantPropagatesWriteErrors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bucket unavailable")}
	s := newTestServer(writer)

	task, err := writeback.NewStoreVariantTask(writeback.Variant{Key: "k", Data: []byte("x")})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := s.handleStoreVariant(context.Background(), task); err == nil {
		t.Fatal("expected error so the task is retried")
	}
}

func TestHandleStoreVariantSkipsRetryOnBadPayload(t *testing.T) {
	writer := &fakeWriter{}
	s := newTestServer(writer)

	task := asynq.NewTask(writeback.TypeStoreVariant, []byte("not json"))
	err := s.handleStoreVariant(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}
	if writer.calls != 0 {
		t.Fatalf("expected no writes, got %d", writer.calls)
	}
}
