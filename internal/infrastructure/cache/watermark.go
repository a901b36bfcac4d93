package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/janhq/mention-agent/internal/domain/notification"
)

const watermarkKey = KeyPrefix + "watermark"

// advanceScript sets the key only when the new value is greater, so
// concurrent or stale writers can never move the watermark backwards.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local candidate = tonumber(ARGV[1])
if candidate > current then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// WatermarkStore persists the pass watermark as unix microseconds.
type WatermarkStore struct {
	cache   *RedisCache
	initial time.Time
}

// NewWatermarkStore returns a store that reports initial until a watermark
// has been saved.
func NewWatermarkStore(cache *RedisCache, initial time.Time) *WatermarkStore {
	return &WatermarkStore{cache: cache, initial: initial}
}

// Load returns the stored watermark.
func (s *WatermarkStore) Load(ctx context.Context) (time.Time, error) {
	raw, err := s.cache.client.Get(ctx, watermarkKey).Result()
	if errors.Is(err, redis.Nil) {
		return s.initial, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get watermark: %w", err)
	}

	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return time.UnixMicro(micros).UTC(), nil
}

// Save advances the watermark to at. Older values are ignored.
func (s *WatermarkStore) Save(ctx context.Context, at time.Time) error {
	value := strconv.FormatInt(at.UnixMicro(), 10)
	if err := advanceScript.Run(ctx, s.cache.client, []string{watermarkKey}, value).Err(); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}

var _ notification.WatermarkStore = (*WatermarkStore)(nil)
