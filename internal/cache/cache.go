// Package cache provides a redis-backed cache for the latest derived
// pulse per venue, so dashboard polls don't recompute or hit sqlite.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pulse-data/venue.report/internal/pulse"
)

// latestTTL bounds staleness: publishers report every 15 seconds, so a
// missing refresh within 5 minutes means the venue went quiet and the
// cache entry should die with it.
const latestTTL = 5 * time.Minute

// LatestPulse is the cached per-venue value: the most recent derived
// score plus the moment it was computed.
type LatestPulse struct {
	VenueID    int64             `json:"venue_id"`
	Result     pulse.PulseResult `json:"result"`
	ObservedAt time.Time         `json:"observed_at"`
}

// Client wraps the redis connection with venue-pulse operations.
type Client struct {
	rdb *redis.Client
}

// New connects to redis at addr and verifies the connection.
func New(ctx context.Context, addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		MinIdleConns: 4,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func latestKey(venueID int64) string {
	return fmt.Sprintf("pulse:latest:%d", venueID)
}

// SetLatest stores the latest derived pulse for a venue.
func (c *Client) SetLatest(ctx context.Context, lp LatestPulse) error {
	data, err := json.Marshal(lp)
	if err != nil {
		return fmt.Errorf("failed to marshal latest pulse: %w", err)
	}
	if err := c.rdb.Set(ctx, latestKey(lp.VenueID), data, latestTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache latest pulse: %w", err)
	}
	return nil
}

// GetLatest fetches the latest derived pulse for a venue. Returns nil
// with no error on a cache miss; callers fall back to recomputing.
func (c *Client) GetLatest(ctx context.Context, venueID int64) (*LatestPulse, error) {
	val, err := c.rdb.Get(ctx, latestKey(venueID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest pulse: %w", err)
	}

	var lp LatestPulse
	if err := json.Unmarshal([]byte(val), &lp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest pulse: %w", err)
	}
	return &lp, nil
}
