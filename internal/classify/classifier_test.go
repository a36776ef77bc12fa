package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/thread"
)

type fakeEngine struct {
	fn      func(prompt string, target any) error
	calls   int
	prompts []string
}

func (f *fakeEngine) GenerateStructured(ctx context.Context, prompt string, target any) error {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.fn(prompt, target)
}

func verdictEngine(v Verdict) *fakeEngine {
	return &fakeEngine{fn: func(prompt string, target any) error {
		*(target.(*Verdict)) = v
		return nil
	}}
}

func seedThread(t *testing.T, store thread.Store, th *thread.Thread, messages int) *thread.Thread {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create thread: %v", err)
	}
	for i := 0; i < messages; i++ {
		m := &thread.Message{
			ThreadID:  th.ID,
			Direction: thread.DirectionIncoming,
			Sender:    th.ParticipantName,
			Content:   fmt.Sprintf("message %d", i),
			SentAt:    time.Date(2026, 8, 1, 10, i, 0, 0, time.UTC),
		}
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}
	return th
}

func TestClassifyThreadPersistsVerdict(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{
		Category:        thread.CategorySalesInquiry,
		IsSelling:       true,
		Intent:          "wants to sell an SEO service",
		SuggestedStatus: thread.StatusWaiting,
	})
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"}, 2)

	c := New(store, eng, Config{})
	res, err := c.ClassifyThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if res.Skipped || res.Category != thread.CategorySalesInquiry || !res.IsSelling {
		t.Fatalf("wrong result: %+v", res)
	}

	got, _ := store.GetThread(context.Background(), th.ID)
	if got.Category != thread.CategorySalesInquiry || !got.IsSelling || got.ClassifiedAt == nil {
		t.Fatalf("verdict not persisted: %+v", got)
	}
	if got.Status != thread.StatusWaiting {
		t.Fatalf("status = %s", got.Status)
	}
	if got.WampScore != nil || got.QualificationData != nil || got.EnrichmentData != nil {
		t.Fatal("classification touched scoring or enrichment fields")
	}
}

func TestClassifyNeverSetsQualified(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{
		Category:        thread.CategoryPartnership,
		SuggestedStatus: thread.StatusQualified,
	})
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"}, 1)

	c := New(store, eng, Config{})
	if _, err := c.ClassifyThread(context.Background(), th.ID); err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.Status != thread.StatusNeedsReply {
		t.Fatalf("qualified leaked through classification: %s", got.Status)
	}
}

func TestClassifyEmptyID(t *testing.T) {
	c := New(thread.NewInMemoryStore(), verdictEngine(Verdict{}), Config{})
	_, err := c.ClassifyThread(context.Background(), "")
	if !errors.Is(err, thread.ErrInvalidID) {
		t.Fatalf("want ErrInvalidID, got %v", err)
	}
}

func TestClassifyUnknownThread(t *testing.T) {
	c := New(thread.NewInMemoryStore(), verdictEngine(Verdict{}), Config{})
	_, err := c.ClassifyThread(context.Background(), "missing")
	if !errors.Is(err, thread.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClassifySkipsZeroMessageThread(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{Category: thread.CategorySpam})
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ghost"}, 0)

	c := New(store, eng, Config{})
	res, err := c.ClassifyThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !res.Skipped {
		t.Fatal("zero-message thread was not skipped")
	}
	if eng.calls != 0 {
		t.Fatalf("engine called %d times for an empty thread", eng.calls)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.ClassifiedAt != nil {
		t.Fatal("empty thread was marked classified")
	}
}

func TestClassifySkipsManualPin(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{Category: thread.CategorySpam})
	now := time.Now()
	th := seedThread(t, store, &thread.Thread{
		ParticipantName:      "Ada",
		Category:             thread.CategoryPersonal,
		ClassifiedAt:         &now,
		ManualClassification: true,
	}, 3)

	c := New(store, eng, Config{})
	res, err := c.ClassifyThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !res.Skipped || eng.calls != 0 {
		t.Fatalf("manual pin not honored: %+v, calls=%d", res, eng.calls)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.Category != thread.CategoryPersonal {
		t.Fatalf("manual category overwritten: %s", got.Category)
	}
}

func TestClassifyClearsSnoozeFlags(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{Category: thread.CategoryNetworking, SuggestedStatus: thread.StatusNeedsReply})
	until := time.Now().Add(24 * time.Hour)
	th := seedThread(t, store, &thread.Thread{
		ParticipantName: "Ada",
		Status:          thread.StatusSnoozed,
		IsSnoozed:       true,
		SnoozeUntil:     &until,
	}, 1)

	c := New(store, eng, Config{})
	if _, err := c.ClassifyThread(context.Background(), th.ID); err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.Status != thread.StatusNeedsReply {
		t.Fatalf("status = %s", got.Status)
	}
	if got.IsSnoozed || got.SnoozeUntil != nil {
		t.Fatalf("snooze flags contradict the new status: %+v", got)
	}
}

func TestClassifyInvalidVerdictIsUpstream(t *testing.T) {
	store := thread.NewInMemoryStore()
	eng := verdictEngine(Verdict{Category: "made_up_category"})
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"}, 1)

	c := New(store, eng, Config{})
	_, err := c.ClassifyThread(context.Background(), th.ID)
	if !errors.Is(err, engine.ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.ClassifiedAt != nil {
		t.Fatal("invalid verdict was persisted")
	}
}

func TestClassifyBacklogCapAndFailureIsolation(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedThread(t, store, &thread.Thread{
			ParticipantName: fmt.Sprintf("p%d", i),
			LastMessageAt:   time.Date(2026, 8, 1, 0, i, 0, 0, time.UTC),
		}, 1)
	}

	failures := 0
	eng := &fakeEngine{fn: func(prompt string, target any) error {
		// fail the second call only
		if failures == 0 && strings.Contains(prompt, "p1") {
			failures++
			return fmt.Errorf("%w: transient", engine.ErrUpstream)
		}
		*(target.(*Verdict)) = Verdict{Category: thread.CategoryNetworking, SuggestedStatus: thread.StatusNeedsReply}
		return nil
	}}

	c := New(store, eng, Config{BatchSize: 3})
	res, err := c.ClassifyBacklog(ctx)
	if err != nil {
		t.Fatalf("backlog failed: %v", err)
	}
	if eng.calls != 3 {
		t.Fatalf("batch cap not applied: %d calls", eng.calls)
	}
	if res.Classified != 2 || res.Failed != 1 {
		t.Fatalf("wrong tallies: %+v", res)
	}

	// second pass picks up what the first left behind
	res2, err := c.ClassifyBacklog(ctx)
	if err != nil {
		t.Fatalf("second backlog failed: %v", err)
	}
	if res2.Classified != 3 {
		t.Fatalf("remaining backlog not drained: %+v", res2)
	}

	// third pass finds nothing: classification is idempotent over the backlog
	res3, err := c.ClassifyBacklog(ctx)
	if err != nil {
		t.Fatalf("third backlog failed: %v", err)
	}
	if len(res3.Results) != 0 {
		t.Fatalf("already-classified threads reprocessed: %+v", res3)
	}
}

func TestClassifyBacklogIncludesCorrections(t *testing.T) {
	store := thread.NewInMemoryStore()
	ctx := context.Background()

	at := time.Now()
	corrected := &thread.Thread{
		ParticipantName:      "Corrected Carl",
		Category:             thread.CategoryRecruiter,
		Intent:               "recruiting for a platform role",
		ClassifiedAt:         &at,
		ManualClassification: true,
	}
	if err := store.CreateThread(ctx, corrected); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	seedThread(t, store, &thread.Thread{ParticipantName: "Fresh"}, 1)

	eng := verdictEngine(Verdict{Category: thread.CategoryNetworking, SuggestedStatus: thread.StatusNeedsReply})
	c := New(store, eng, Config{})
	if _, err := c.ClassifyBacklog(ctx); err != nil {
		t.Fatalf("backlog failed: %v", err)
	}
	if len(eng.prompts) == 0 || !strings.Contains(eng.prompts[0], "Corrected Carl") {
		t.Fatal("manual correction missing from prompt")
	}
}
