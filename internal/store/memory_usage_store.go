package store

import (
	"context"
	"sync"
)

type MemoryUsageStore struct {
	mu   sync.Mutex
	logs []UsageLog
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) CreateUsageLog(_ context.Context, usage UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, usage)
	return nil
}

func (s *MemoryUsageStore) Logs() []UsageLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UsageLog, len(s.logs))
	copy(out, s.logs)
	return out
}
