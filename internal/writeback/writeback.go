// Package writeback persists freshly transformed variants to the
// transformed-image bucket after the response has been sent. Persistence is
// best-effort by contract: failures surface through logs and metrics only,
// never through the response path.
package writeback

import (
	"context"
	"log"
	"sync"
	"time"
)

// Variant is a transformed image ready to be written under its cache key.
type Variant struct {
	Key          string `json:"key"`
	Data         []byte `json:"data"`
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control"`
}

// Store accepts a variant for eventual persistence. Implementations detach
// from the request: they return immediately and report nothing back.
type Store interface {
	Store(v Variant)
}

// ObjectWriter is the slice of the storage gateway a write-back needs.
type ObjectWriter interface {
	StoreTransformed(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
}

// Deduper marks a cache key as written and reports whether this writer was
// first. Concurrent recomputes of one key produce identical bytes, so a
// duplicate write is harmless; skipping it just saves a round trip.
type Deduper interface {
	MarkWritten(ctx context.Context, key string) (first bool, err error)
}

// Inline writes variants from a background goroutine with its own timeout,
// detached from the request context.
type Inline struct {
	logger  *log.Logger
	writer  ObjectWriter
	dedupe  Deduper // optional
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInline(logger *log.Logger, writer ObjectWriter, dedupe Deduper, timeout time.Duration) *Inline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Inline{
		logger:  logger,
		writer:  writer,
		dedupe:  dedupe,
		timeout: timeout,
	}
}

func (s *Inline) Store(v Variant) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if s.dedupe != nil {
			first, err := s.dedupe.MarkWritten(ctx, v.Key)
			if err != nil {
				s.logger.Printf("write dedupe check failed key=%s err=%v", v.Key, err)
			} else if !first {
				return
			}
		}

		if err := s.writer.StoreTransformed(ctx, v.Key, v.Data, v.ContentType, v.CacheControl); err != nil {
			s.logger.Printf("write-back failed key=%s err=%v", v.Key, err)
		}
	}()
}

// Flush waits for in-flight writes; used on shutdown and in tests.
func (s *Inline) Flush() {
	s.wg.Wait()
}
