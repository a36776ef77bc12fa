package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds the tunable parameters for the enrichment queue.
type QueueConfig struct {
	// MaxWorkers is the number of concurrent enrichment fetches. Enrichment
	// providers meter by request; keep this low.
	MaxWorkers int

	// JobTimeout bounds a single enrichment fetch.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 4,
		JobTimeout: 1 * time.Minute,
	}
}

// RiverQueueConfig converts our config to River's queue configuration format.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
