// Package history stores what the processor did with each notification so a
// mention is never answered twice.
package history

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/janhq/mention-agent/internal/domain/notification"
)

// DefaultSize bounds the in-process history.
const DefaultSize = 4096

// Memory is a bounded in-process history. The oldest entries are evicted
// first, which is safe once the watermark has moved past them.
type Memory struct {
	cache *lru.Cache
}

// NewMemory creates a history holding at most size records.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	return &Memory{cache: cache}, nil
}

// Contains reports whether uri was recorded.
func (m *Memory) Contains(_ context.Context, notificationURI string) (bool, error) {
	return m.cache.Contains(notificationURI), nil
}

// Record stores record, replacing any earlier entry for the same URI.
func (m *Memory) Record(_ context.Context, record notification.Record) error {
	m.cache.Add(record.NotificationURI, record)
	return nil
}

// Get returns the stored record for uri.
func (m *Memory) Get(notificationURI string) (notification.Record, bool) {
	v, ok := m.cache.Peek(notificationURI)
	if !ok {
		return notification.Record{}, false
	}
	record, ok := v.(notification.Record)
	return record, ok
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	return m.cache.Len()
}

var _ notification.History = (*Memory)(nil)
