package metrics

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/record"
)

var (
	mu          sync.RWMutex
	globalStore *Store
	logger      = zap.NewNop()
)

// Init opens the process-wide stats store. Later calls replace the store.
func Init(path string, l *zap.Logger) error {
	store, err := NewStore(path)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if globalStore != nil {
		_ = globalStore.Close()
	}
	globalStore = store
	if l != nil {
		logger = l
	}
	return nil
}

func current() (*Store, *zap.Logger) {
	mu.RLock()
	defer mu.RUnlock()
	return globalStore, logger
}

// RecordInvocation counts one use of mode. Without a store it does nothing;
// failures are logged and never surface to the caller.
func RecordInvocation(ctx context.Context, mode Mode) {
	s, log := current()
	if s == nil {
		return
	}
	if err := s.Increment(ctx, mode); err != nil {
		log.Warn("record invocation failed", zap.String("mode", string(mode)), zap.Error(err))
	}
}

// RecordSearch counts the per-source outcomes of a finished search.
func RecordSearch(ctx context.Context, rs *record.ResultSet) {
	s, log := current()
	if s == nil || rs == nil {
		return
	}
	if err := s.RecordSources(ctx, rs.Sources); err != nil {
		log.Warn("record source outcomes failed", zap.Error(err))
	}
}

// Stats returns the cumulative totals per mode, or nil without a store.
func Stats(ctx context.Context) map[Mode]int64 {
	s, log := current()
	if s == nil {
		return nil
	}
	totals, err := s.Totals(ctx)
	if err != nil {
		log.Warn("read invocation totals failed", zap.Error(err))
		return nil
	}
	return totals
}

// Current returns the process-wide store, or nil.
func Current() *Store {
	s, _ := current()
	return s
}

// Close closes the process-wide store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := globalStore.Close()
	globalStore = nil
	return err
}

// SetStoreForTesting swaps the process-wide store.
func SetStoreForTesting(s *Store) {
	mu.Lock()
	defer mu.Unlock()
	globalStore = s
}
