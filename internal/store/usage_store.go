package store

import (
	"context"
	"time"
)

// UsageLog records one completed transform: what was produced and what it
// cost. Written best-effort after the response has been assembled.
type UsageLog struct {
	CacheKey      string
	SourceBytes   int
	OutputBytes   int
	ContentType   string
	ComputeTimeMS int64
	CreatedAt     time.Time
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage UsageLog) error
}
