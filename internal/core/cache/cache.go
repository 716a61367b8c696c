// Package cache provides the response cache consulted by the message router.
//
// Two backends exist: a bounded in-process FIFO cache for single-instance
// deployments and a Redis-backed cache for multi-instance ones. Keys are
// deterministic request fingerprints such as "notes:<task-id>"; values are
// opaque JSON payloads.
package cache

import (
	"context"
	"time"
)

// Cache stores fetched responses under deterministic fingerprints.
type Cache interface {
	// Get returns the payload for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl. A ttl <= 0 is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key if present.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Len reports the number of live entries.
	Len(ctx context.Context) (int, error)
}

// Stats summarizes cache activity for the CLI and the cacheCheck action.
type Stats struct {
	Entries  int        `json:"entries"`
	Capacity int        `json:"capacity,omitempty"`
	Hits     int64      `json:"hits"`
	Misses   int64      `json:"misses"`
	Oldest   *time.Time `json:"oldest,omitempty"`
}

// StatsReporter is implemented by backends that can report Stats.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}
