// Package classify orchestrates thread intent classification: it builds
// conversation context, calls the classification engine, validates the verdict
// against the status invariants, and persists the result.
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/thread"
)

// Config is passed in explicitly at construction; there is no ambient state.
type Config struct {
	BatchSize       int // max threads per backlog invocation
	RecentMessages  int // messages of context per thread
	FewShotExamples int // manually corrected classifications used as steering
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.RecentMessages <= 0 {
		c.RecentMessages = 5
	}
	if c.FewShotExamples <= 0 {
		c.FewShotExamples = 5
	}
	return c
}

// ThreadResult summarizes one thread's classification outcome.
type ThreadResult struct {
	ThreadID  string          `json:"thread_id"`
	Category  thread.Category `json:"category,omitempty"`
	IsSelling bool            `json:"is_selling"`
	Skipped   bool            `json:"skipped,omitempty"`
	SkipNote  string          `json:"skip_note,omitempty"`
}

// BatchResult is the outcome of one backlog invocation.
type BatchResult struct {
	Classified int            `json:"classified"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Results    []ThreadResult `json:"results"`
}

type Classifier struct {
	store  thread.Store
	engine engine.Client
	cfg    Config
	now    func() time.Time
}

func New(store thread.Store, eng engine.Client, cfg Config) *Classifier {
	return &Classifier{store: store, engine: eng, cfg: cfg.withDefaults(), now: time.Now}
}

// ClassifyThread classifies a single thread by id.
func (c *Classifier) ClassifyThread(ctx context.Context, threadID string) (*ThreadResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("classify: %w: empty thread id", thread.ErrInvalidID)
	}
	t, err := c.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("classify: load thread %s: %w", threadID, err)
	}
	corrections, err := c.store.RecentManualCorrections(ctx, c.cfg.FewShotExamples)
	if err != nil {
		return nil, fmt.Errorf("classify: load corrections: %w", err)
	}
	return c.classifyOne(ctx, t, corrections)
}

// ClassifyBacklog processes unclassified threads, capped at the configured
// batch size to bound external-call cost per invocation. Threads run
// sequentially: the few-shot correction snapshot is taken once up front and
// held fixed for the whole batch, so ordering stays deterministic. A failing
// thread is logged and skipped; it never aborts the batch.
func (c *Classifier) ClassifyBacklog(ctx context.Context) (*BatchResult, error) {
	threads, err := c.store.ListUnclassified(ctx, c.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("classify: list backlog: %w", err)
	}
	corrections, err := c.store.RecentManualCorrections(ctx, c.cfg.FewShotExamples)
	if err != nil {
		return nil, fmt.Errorf("classify: load corrections: %w", err)
	}

	res := &BatchResult{Results: make([]ThreadResult, 0, len(threads))}
	for _, t := range threads {
		if t.ManualClassification {
			res.Skipped++
			res.Results = append(res.Results, ThreadResult{ThreadID: t.ID, Skipped: true, SkipNote: "manual classification pinned"})
			continue
		}
		r, err := c.classifyOne(ctx, t, corrections)
		if err != nil {
			log.Warn().Err(err).Str("thread_id", t.ID).Msg("classification failed, skipping thread")
			res.Failed++
			continue
		}
		if r.Skipped {
			res.Skipped++
		} else {
			res.Classified++
		}
		res.Results = append(res.Results, *r)
	}
	log.Info().
		Int("classified", res.Classified).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("classification batch done")
	return res, nil
}

// classifyOne classifies one already-loaded thread. It writes only the fields
// the classification path owns: category, flags, intent, classifiedAt and
// status. Score and enrichment fields are never touched here.
func (c *Classifier) classifyOne(ctx context.Context, t *thread.Thread, corrections []*thread.Thread) (*ThreadResult, error) {
	if t.ManualClassification {
		return &ThreadResult{ThreadID: t.ID, Skipped: true, SkipNote: "manual classification pinned"}, nil
	}

	total, err := c.store.CountMessages(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("count messages for %s: %w", t.ID, err)
	}
	if total == 0 {
		return &ThreadResult{ThreadID: t.ID, Skipped: true, SkipNote: "no messages"}, nil
	}
	messages, err := c.store.RecentMessages(ctx, t.ID, c.cfg.RecentMessages)
	if err != nil {
		return nil, fmt.Errorf("load messages for %s: %w", t.ID, err)
	}

	prompt := buildPrompt(t, messages, total, corrections)
	var verdict Verdict
	if err := c.engine.GenerateStructured(ctx, prompt, &verdict); err != nil {
		return nil, fmt.Errorf("engine verdict for %s: %w", t.ID, err)
	}
	if err := verdict.Validate(); err != nil {
		return nil, fmt.Errorf("%w: verdict for %s: %v", engine.ErrUpstream, t.ID, err)
	}

	now := c.now()
	t.Category = verdict.Category
	t.IsSelling = verdict.IsSelling
	t.IsPartner = verdict.IsPartner
	t.Intent = verdict.Intent
	t.ClassifiedAt = &now
	t.Status = verdict.SuggestedStatus
	// the verdict status replaces a snooze; stale snooze flags would
	// contradict the new status
	t.IsSnoozed = false
	t.SnoozeUntil = nil
	if err := c.store.UpdateThread(ctx, t); err != nil {
		return nil, fmt.Errorf("persist classification for %s: %w", t.ID, err)
	}

	log.Debug().
		Str("thread_id", t.ID).
		Str("category", string(verdict.Category)).
		Bool("is_selling", verdict.IsSelling).
		Str("status", string(t.Status)).
		Msg("thread classified")
	return &ThreadResult{ThreadID: t.ID, Category: verdict.Category, IsSelling: verdict.IsSelling}, nil
}
