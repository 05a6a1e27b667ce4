package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache is a short-TTL read-through cache for availability
// previews. It sits outside the engine; control flow never reads it.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*AvailabilityCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}
	return &AvailabilityCache{client: redis.NewClient(opt), ttl: ttl}, nil
}

// NewWithClient wires a custom client, used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func Key(locationID int, vehicleType string, start, end time.Time) string {
	return fmt.Sprintf("availability:%d:%s:%d:%d", locationID, vehicleType, start.Unix(), end.Unix())
}

// Get unmarshals a cached value into dest. Returns false on a miss.
func (c *AvailabilityCache) Get(key string, dest interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(context.Background(), key).Result()
	if stderrors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error reading cache key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("error decoding cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores a value under the configured TTL. Errors are returned for the
// caller to log; a failed cache write never fails the request.
func (c *AvailabilityCache) Set(key string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error encoding cache key %s: %w", key, err)
	}
	if err := c.client.Set(context.Background(), key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("error writing cache key %s: %w", key, err)
	}
	return nil
}
