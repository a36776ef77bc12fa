// Package jobqueue provides the River-based background queue for enrichment
// fetches triggered as a side effect of qualification. The queue is the
// isolation boundary the scoring path relies on: a slow or failing enrichment
// call can never block or fail a scoring request.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/enrich"
	"github.com/warmline/internal/thread"
)

// EnrichmentJobArgs identifies the thread to enrich.
type EnrichmentJobArgs struct {
	ThreadID string `json:"thread_id"`
}

// Kind returns the job kind for River.
func (EnrichmentJobArgs) Kind() string { return "thread_enrichment" }

// EnrichmentWorker fetches profile/company facts for a thread's participant
// and writes them onto the thread. Last write wins: if the thread was
// reclassified or rescored while the fetch ran, the newer enrichment simply
// replaces whatever was there and the next rescore sees it.
type EnrichmentWorker struct {
	river.WorkerDefaults[EnrichmentJobArgs]
	store    thread.Store
	provider enrich.Provider
	timeout  time.Duration
}

// Timeout bounds a single enrichment fetch.
func (w *EnrichmentWorker) Timeout(*river.Job[EnrichmentJobArgs]) time.Duration {
	return w.timeout
}

// Work performs one enrichment fetch. Failures are logged and swallowed; with
// MaxAttempts 1 nothing here is retried, because enrichment is opportunistic
// and the core never retries automatically.
func (w *EnrichmentWorker) Work(ctx context.Context, job *river.Job[EnrichmentJobArgs]) error {
	args := job.Args
	t, err := w.store.GetThread(ctx, args.ThreadID)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", args.ThreadID).Msg("enrichment: thread gone, dropping job")
		return nil
	}
	if t.ProfileURL == "" {
		log.Debug().Str("thread_id", t.ID).Msg("enrichment: thread has no profile url")
		return nil
	}

	facts, err := w.provider.Lookup(ctx, t.ProfileURL)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", t.ID).Msg("enrichment fetch failed")
		return nil
	}
	if facts == nil {
		log.Debug().Str("thread_id", t.ID).Msg("enrichment: provider has no data")
		return nil
	}

	t.EnrichmentData = facts
	if err := w.store.UpdateThread(ctx, t); err != nil {
		log.Warn().Err(err).Str("thread_id", t.ID).Msg("enrichment: persist failed")
		return nil
	}
	log.Info().Str("thread_id", t.ID).Str("company", facts.Company).Msg("thread enriched")
	return nil
}

// Queue manages the River client for enrichment jobs.
type Queue struct {
	client *river.Client[pgx.Tx]
}

// NewQueue wires the enrichment worker into a River client on the shared pool.
func NewQueue(pool *pgxpool.Pool, store thread.Store, provider enrich.Provider, cfg *QueueConfig) (*Queue, error) {
	if cfg == nil {
		cfg = DefaultQueueConfig()
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &EnrichmentWorker{store: store, provider: provider, timeout: cfg.JobTimeout})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  cfg.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &Queue{client: client}, nil
}

// Start starts the queue workers.
func (q *Queue) Start(ctx context.Context) error { return q.client.Start(ctx) }

// Stop stops the queue workers.
func (q *Queue) Stop(ctx context.Context) error { return q.client.Stop(ctx) }

// EnqueueEnrichment queues one enrichment fetch for a thread. Satisfies
// score.EnrichmentQueue.
func (q *Queue) EnqueueEnrichment(ctx context.Context, threadID string) error {
	_, err := q.client.Insert(ctx, EnrichmentJobArgs{ThreadID: threadID}, &river.InsertOpts{
		MaxAttempts: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to queue enrichment job: %w", err)
	}
	return nil
}
