package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"github.com/warmline/internal/thread"
)

type fakeProvider struct {
	facts *thread.Enrichment
	err   error
	calls int
}

func (p *fakeProvider) Lookup(ctx context.Context, profileURL string) (*thread.Enrichment, error) {
	p.calls++
	return p.facts, p.err
}

func enrichmentJob(threadID string) *river.Job[EnrichmentJobArgs] {
	return &river.Job[EnrichmentJobArgs]{Args: EnrichmentJobArgs{ThreadID: threadID}}
}

func TestWorkerWritesEnrichment(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	th := &thread.Thread{ParticipantName: "Ada", ProfileURL: "https://example.com/in/ada"}
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	provider := &fakeProvider{facts: &thread.Enrichment{Company: "Analytical Engines", FetchedAt: time.Now()}}
	w := &EnrichmentWorker{store: store, provider: provider, timeout: time.Minute}
	if err := w.Work(ctx, enrichmentJob(th.ID)); err != nil {
		t.Fatalf("work failed: %v", err)
	}

	got, _ := store.GetThread(ctx, th.ID)
	if got.EnrichmentData == nil || got.EnrichmentData.Company != "Analytical Engines" {
		t.Fatalf("enrichment not written: %+v", got.EnrichmentData)
	}
}

func TestWorkerOverwritesStaleEnrichment(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	th := &thread.Thread{
		ParticipantName: "Ada",
		ProfileURL:      "https://example.com/in/ada",
		EnrichmentData:  &thread.Enrichment{Company: "Old Employer", FetchedAt: time.Now().Add(-time.Hour)},
	}
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	provider := &fakeProvider{facts: &thread.Enrichment{Company: "New Employer", FetchedAt: time.Now()}}
	w := &EnrichmentWorker{store: store, provider: provider}
	if err := w.Work(ctx, enrichmentJob(th.ID)); err != nil {
		t.Fatalf("work failed: %v", err)
	}

	// last write wins, no reconciliation
	got, _ := store.GetThread(ctx, th.ID)
	if got.EnrichmentData.Company != "New Employer" {
		t.Fatalf("stale enrichment kept: %+v", got.EnrichmentData)
	}
}

func TestWorkerSwallowsFailures(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	th := &thread.Thread{ParticipantName: "Ada", ProfileURL: "https://example.com/in/ada"}
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// provider failure never surfaces as a job error; there is no retry
	provider := &fakeProvider{err: errors.New("provider 500")}
	w := &EnrichmentWorker{store: store, provider: provider}
	if err := w.Work(ctx, enrichmentJob(th.ID)); err != nil {
		t.Fatalf("provider failure surfaced: %v", err)
	}

	// a deleted thread drops the job silently
	if err := w.Work(ctx, enrichmentJob("gone")); err != nil {
		t.Fatalf("missing thread surfaced: %v", err)
	}
}

func TestWorkerSkipsThreadWithoutProfile(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	th := &thread.Thread{ParticipantName: "Ada"}
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	provider := &fakeProvider{facts: &thread.Enrichment{Company: "X"}}
	w := &EnrichmentWorker{store: store, provider: provider}
	if err := w.Work(ctx, enrichmentJob(th.ID)); err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called for a thread without a profile url")
	}
}

func TestWorkerTimeoutFromConfig(t *testing.T) {
	cfg := DefaultQueueConfig()
	w := &EnrichmentWorker{timeout: cfg.JobTimeout}
	if got := w.Timeout(enrichmentJob("t1")); got != cfg.JobTimeout {
		t.Fatalf("timeout = %s, want %s", got, cfg.JobTimeout)
	}
}
