package notification

import (
	"context"
	"sync"
	"time"
)

// MemoryWatermark keeps the watermark in process memory.
type MemoryWatermark struct {
	mu sync.Mutex
	at time.Time
}

// NewMemoryWatermark starts at initial.
func NewMemoryWatermark(initial time.Time) *MemoryWatermark {
	return &MemoryWatermark{at: initial}
}

// Load returns the current watermark.
func (w *MemoryWatermark) Load(ctx context.Context) (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at, nil
}

// Save advances the watermark. Older values are ignored.
func (w *MemoryWatermark) Save(ctx context.Context, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if at.After(w.at) {
		w.at = at
	}
	return nil
}

var _ WatermarkStore = (*MemoryWatermark)(nil)
