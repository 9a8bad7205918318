package writeback

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

type captureWriter struct {
	mu    sync.Mutex
	calls int
	err   error
	last  struct {
		key          string
		contentType  string
		cacheControl string
	}
}

func (w *captureWriter) StoreTransformed(_ context.Context, key string, _ []byte, contentType, cacheControl string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.last.key = key
	w.last.contentType = contentType
	w.last.cacheControl = cacheControl
	return w.err
}

func (w *captureWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type stubDedupe struct {
	first bool
	err   error
}

func (d stubDedupe) MarkWritten(context.Context, string) (bool, error) {
	return d.first, d.err
}

func TestInlineStoreWrites(t *testing.T) {
	writer := &captureWriter{}
	s := NewInline(log.New(io.Discard, "", 0), writer, nil, time.Second)

	s.Store(Variant{
		Key:          "rio/1.jpg/width=100",
		Data:         []byte("bytes"),
		ContentType:  "image/jpeg",
		CacheControl: "max-age=31536000",
	})
	s.Flush()

	if writer.callCount() != 1 {
		t.Fatalf("expected one write, got %d", writer.callCount())
	}
	if writer.last.key != "rio/1.jpg/width=100" {
		t.Fatalf("unexpected key: %s", writer.last.key)
	}
	if writer.last.cacheControl != "max-age=31536000" {
		t.Fatalf("unexpected cache control: %s", writer.last.cacheControl)
	}
}

func TestInlineStoreSkipsDuplicateKeys(t *testing.T) {
	writer := &captureWriter{}
	s := NewInline(log.New(io.Discard, "", 0), writer, stubDedupe{first: false}, time.Second)

	s.Store(Variant{Key: "k", Data: []byte("x")})
	s.Flush()

	if writer.callCount() != 0 {
		t.Fatalf("expected duplicate write to be skipped, got %d writes", writer.callCount())
	}
}

func TestInlineStoreWritesWhenDedupeFails(t *testing.T) {
	writer := &captureWriter{}
	s := NewInline(log.New(io.Discard, "", 0), writer, stubDedupe{err: errors.New("redis down")}, time.Second)

	s.Store(Variant{Key: "k", Data: []byte("x")})
	s.Flush()

	if writer.callCount() != 1 {
		t.Fatalf("expected write despite dedupe failure, got %d writes", writer.callCount())
	}
}

func TestInlineStoreSwallowsWriteErrors(t *testing.T) {
	writer := &captureWriter{err: errors.New("bucket unavailable")}
	s := NewInline(log.New(io.Discard, "", 0), writer, nil, time.Second)

	// Store must not panic or report anything; the error is log-only.
	s.Store(Variant{Key: "k", Data: []byte("x")})
	s.Flush()
}

func TestStoreVariantTaskRoundTrip(t *testing.T) {
	v := Variant{
		Key:          "rio/1.jpg/format=webp,width=200",
		Data:         []byte{0x1, 0x2, 0x3},
		ContentType:  "image/webp",
		CacheControl: "max-age=31536000",
	}

	task, err := NewStoreVariantTask(v)
	if err != nil {
		t.Fatalf("NewStoreVariantTask returned error: %v", err)
	}

	parsed, err := ParseStoreVariantPayload(task)
	if err != nil {
		t.Fatalf("ParseStoreVariantPayload returned error: %v", err)
	}

	if parsed.Key != v.Key {
		t.Fatalf("expected key %q, got %q", v.Key, parsed.Key)
	}
	if parsed.ContentType != v.ContentType {
		t.Fatalf("expected content type %q, got %q", v.ContentType, parsed.ContentType)
	}
	if len(parsed.Data) != 3 {
		t.Fatalf("expected 3 payload bytes, got %d", len(parsed.Data))
	}
}
