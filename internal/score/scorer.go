// Package score orchestrates warmth scoring: it assembles conversation,
// enrichment and post context, calls the scoring engine, applies the
// qualification threshold, appends the score audit trail, and conditionally
// hands off enrichment as a decoupled background task.
package score

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/thread"
)

// PostFetcher is the slice of the messaging provider scoring needs.
type PostFetcher interface {
	RecentPosts(ctx context.Context, profileURL string, limit int) ([]thread.Post, error)
}

// EnrichmentQueue accepts fire-and-forget enrichment work. Its failures are
// structurally incapable of affecting the scoring response: the scorer only
// logs an enqueue error and moves on, and the queue itself never reports back.
type EnrichmentQueue interface {
	EnqueueEnrichment(ctx context.Context, threadID string) error
}

type Config struct {
	RecentMessages    int // conversation context size
	PostFetchLimit    int // posts requested from the messaging provider
	PostContextLimit  int // cached posts included in the prompt
	PostTruncateChars int
	QualifyThreshold  int
	BusinessLines     []BusinessLine
}

func (c Config) withDefaults() Config {
	if c.RecentMessages <= 0 {
		c.RecentMessages = 15
	}
	if c.PostFetchLimit <= 0 {
		c.PostFetchLimit = 20
	}
	if c.PostContextLimit <= 0 {
		c.PostContextLimit = 10
	}
	if c.PostTruncateChars <= 0 {
		c.PostTruncateChars = 200
	}
	if c.QualifyThreshold <= 0 {
		c.QualifyThreshold = QualifyThreshold
	}
	return c
}

type Scorer struct {
	store  thread.Store
	engine engine.Client
	posts  PostFetcher     // optional
	queue  EnrichmentQueue // optional; nil means enrichment is not configured
	cfg    Config
}

func New(store thread.Store, eng engine.Client, posts PostFetcher, queue EnrichmentQueue, cfg Config) *Scorer {
	return &Scorer{store: store, engine: eng, posts: posts, queue: queue, cfg: cfg.withDefaults()}
}

// ScoreThread scores one thread and returns the full breakdown. On engine
// failure the thread is left untouched and the error wraps engine.ErrUpstream;
// a missing id wraps thread.ErrInvalidID and an unknown one thread.ErrNotFound.
func (s *Scorer) ScoreThread(ctx context.Context, threadID string) (*thread.ScoreBreakdown, error) {
	if threadID == "" {
		return nil, fmt.Errorf("score: %w: empty thread id", thread.ErrInvalidID)
	}
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("score: load thread %s: %w", threadID, err)
	}

	messages, err := s.store.RecentMessages(ctx, t.ID, s.cfg.RecentMessages)
	if err != nil {
		return nil, fmt.Errorf("score: load messages for %s: %w", t.ID, err)
	}

	posts := s.postContext(ctx, t)

	prompt := buildPrompt(t, messages, posts, s.cfg)
	var resp engineScore
	if err := s.engine.GenerateStructured(ctx, prompt, &resp); err != nil {
		return nil, fmt.Errorf("score: engine for %s: %w", t.ID, err)
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: score for %s: %v", engine.ErrUpstream, t.ID, err)
	}

	breakdown := resp.breakdown()
	wasQualified := t.IsQualified
	total := breakdown.Total
	t.WampScore = &total
	t.QualificationData = &breakdown
	t.IsQualified = total >= s.cfg.QualifyThreshold
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return nil, fmt.Errorf("score: persist for %s: %w", t.ID, err)
	}

	// Immutable audit trail: one entry per successful scoring call, even when
	// the score is unchanged from last time.
	entry := &thread.ScoreHistoryEntry{
		ThreadID:  t.ID,
		Total:     breakdown.Total,
		Band:      breakdown.Band,
		Breakdown: breakdown,
	}
	if err := s.store.AppendScoreEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("score: append history for %s: %w", t.ID, err)
	}

	log.Info().
		Str("thread_id", t.ID).
		Int("total", breakdown.Total).
		Str("band", breakdown.Band).
		Bool("qualified", t.IsQualified).
		Msg("thread scored")

	if t.IsQualified && !wasQualified && t.EnrichmentData == nil && s.queue != nil {
		if err := s.queue.EnqueueEnrichment(ctx, t.ID); err != nil {
			log.Warn().Err(err).Str("thread_id", t.ID).Msg("failed to enqueue enrichment")
		}
	}

	return &breakdown, nil
}

// postContext returns the posts to include in scoring context. Absent cached
// posts it tries one best-effort fetch and caches the result; a fetch failure
// is absorbed and scoring proceeds with whatever context is available.
func (s *Scorer) postContext(ctx context.Context, t *thread.Thread) []thread.Post {
	if t.PostData == nil && s.posts != nil && t.ProfileURL != "" {
		fetched, err := s.posts.RecentPosts(ctx, t.ProfileURL, s.cfg.PostFetchLimit)
		if err != nil {
			log.Warn().Err(err).Str("thread_id", t.ID).Msg("post fetch failed, scoring without posts")
		} else if len(fetched) > 0 {
			t.PostData = fetched
			if err := s.store.UpdateThread(ctx, t); err != nil {
				log.Warn().Err(err).Str("thread_id", t.ID).Msg("failed to cache fetched posts")
			}
		}
	}
	posts := t.PostData
	if len(posts) > s.cfg.PostContextLimit {
		posts = posts[:s.cfg.PostContextLimit]
	}
	return posts
}
