package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/thread"
)

type fakeEngine struct {
	fn    func(prompt string, target any) error
	calls int
}

func (f *fakeEngine) GenerateStructured(ctx context.Context, prompt string, target any) error {
	f.calls++
	return f.fn(prompt, target)
}

func scoringEngine(total int) *fakeEngine {
	return &fakeEngine{fn: func(prompt string, target any) error {
		*(target.(*engineScore)) = engineScore{
			Total:             total,
			SuggestedBusiness: "consulting",
			Layer1:            layerResponse{Subtotal: total / 3},
			Layer2:            layerResponse{Subtotal: total / 3},
			Layer3:            layerResponse{Subtotal: total - 2*(total/3)},
			Summary:           "summary",
		}
		return nil
	}}
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (q *fakeQueue) EnqueueEnrichment(ctx context.Context, threadID string) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, threadID)
	return nil
}

type fakePosts struct {
	posts []thread.Post
	err   error
	calls int
}

func (p *fakePosts) RecentPosts(ctx context.Context, profileURL string, limit int) ([]thread.Post, error) {
	p.calls++
	return p.posts, p.err
}

func seedThread(t *testing.T, store thread.Store, th *thread.Thread) *thread.Thread {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateThread(ctx, th); err != nil {
		t.Fatalf("create thread: %v", err)
	}
	m := &thread.Message{ThreadID: th.ID, Direction: thread.DirectionIncoming, Sender: th.ParticipantName, Content: "hello", SentAt: time.Now()}
	if err := store.AppendMessage(ctx, m); err != nil {
		t.Fatalf("append message: %v", err)
	}
	return th
}

func TestScoreThreadQualifiesAtThreshold(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})

	s := New(store, scoringEngine(61), nil, nil, Config{})
	breakdown, err := s.ScoreThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if breakdown.Total != 61 || breakdown.Band != BandHot {
		t.Fatalf("wrong breakdown: %+v", breakdown)
	}

	got, _ := store.GetThread(context.Background(), th.ID)
	if got.WampScore == nil || *got.WampScore != 61 || !got.IsQualified {
		t.Fatalf("61 did not qualify: %+v", got)
	}
	if got.QualificationData == nil || got.QualificationData.SuggestedBusiness != "consulting" {
		t.Fatalf("breakdown not persisted: %+v", got.QualificationData)
	}
}

func TestScoreThreadBelowThreshold(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})

	s := New(store, scoringEngine(60), nil, nil, Config{})
	breakdown, err := s.ScoreThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if breakdown.Band != BandWarm {
		t.Fatalf("band = %s", breakdown.Band)
	}
	got, _ := store.GetThread(context.Background(), th.ID)
	if got.IsQualified {
		t.Fatal("60 must not qualify")
	}
}

func TestScoreHistoryAppendOnly(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})
	ctx := context.Background()

	s := New(store, scoringEngine(45), nil, nil, Config{})
	// same score twice still means two entries
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("first score failed: %v", err)
	}
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("second score failed: %v", err)
	}

	hist, err := store.ListScoreHistory(ctx, th.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("got %d history entries, want 2", len(hist))
	}
	if hist[0].Total != 45 || hist[0].Band != BandWarm {
		t.Fatalf("bad entry: %+v", hist[0])
	}
}

func TestScoreEngineFailureLeavesThreadUntouched(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})
	ctx := context.Background()

	eng := &fakeEngine{fn: func(prompt string, target any) error {
		return fmt.Errorf("%w: timeout", engine.ErrUpstream)
	}}
	s := New(store, eng, nil, nil, Config{})
	_, err := s.ScoreThread(ctx, th.ID)
	if !errors.Is(err, engine.ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}

	got, _ := store.GetThread(ctx, th.ID)
	if got.WampScore != nil || got.QualificationData != nil || got.IsQualified {
		t.Fatalf("failed scoring mutated the thread: %+v", got)
	}
	hist, _ := store.ListScoreHistory(ctx, th.ID)
	if len(hist) != 0 {
		t.Fatalf("failed scoring wrote history: %d entries", len(hist))
	}
}

func TestScoreInvalidTotalIsUpstream(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})

	eng := &fakeEngine{fn: func(prompt string, target any) error {
		*(target.(*engineScore)) = engineScore{Total: 140}
		return nil
	}}
	s := New(store, eng, nil, nil, Config{})
	_, err := s.ScoreThread(context.Background(), th.ID)
	if !errors.Is(err, engine.ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
}

func TestScoreEnqueuesEnrichmentOnNewQualification(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada", ProfileURL: "https://example.com/in/ada"})
	ctx := context.Background()

	q := &fakeQueue{}
	s := New(store, scoringEngine(75), nil, q, Config{})
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != th.ID {
		t.Fatalf("enrichment not enqueued: %+v", q.enqueued)
	}

	// already qualified: rescoring must not enqueue again
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("re-qualification enqueued again: %+v", q.enqueued)
	}
}

func TestScoreNoEnqueueWhenEnrichmentPresent(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{
		ParticipantName: "Ada",
		EnrichmentData:  &thread.Enrichment{Company: "Analytical Engines Ltd", FetchedAt: time.Now()},
	})

	q := &fakeQueue{}
	s := New(store, scoringEngine(75), nil, q, Config{})
	if _, err := s.ScoreThread(context.Background(), th.ID); err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(q.enqueued) != 0 {
		t.Fatal("enqueued despite existing enrichment data")
	}
}

func TestScoreEnqueueFailureDoesNotFailScoring(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada"})

	q := &fakeQueue{err: errors.New("queue down")}
	s := New(store, scoringEngine(90), nil, q, Config{})
	breakdown, err := s.ScoreThread(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("enqueue failure leaked into scoring: %v", err)
	}
	if breakdown.Band != BandOnFire {
		t.Fatalf("band = %s", breakdown.Band)
	}
}

func TestScorePostFetchFailureAbsorbed(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada", ProfileURL: "https://example.com/in/ada"})

	posts := &fakePosts{err: errors.New("provider 500")}
	s := New(store, scoringEngine(30), posts, nil, Config{})
	if _, err := s.ScoreThread(context.Background(), th.ID); err != nil {
		t.Fatalf("post fetch failure leaked into scoring: %v", err)
	}
	if posts.calls != 1 {
		t.Fatalf("post fetch calls = %d", posts.calls)
	}
}

func TestScoreCachesFetchedPosts(t *testing.T) {
	store := thread.NewInMemoryStore()
	th := seedThread(t, store, &thread.Thread{ParticipantName: "Ada", ProfileURL: "https://example.com/in/ada"})
	ctx := context.Background()

	posts := &fakePosts{posts: []thread.Post{{Content: "shipped a new analytics engine"}}}
	s := New(store, scoringEngine(30), posts, nil, Config{})
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("first score failed: %v", err)
	}
	got, _ := store.GetThread(ctx, th.ID)
	if len(got.PostData) != 1 {
		t.Fatalf("posts not cached: %+v", got.PostData)
	}

	// cached: second scoring must not hit the provider again
	if _, err := s.ScoreThread(ctx, th.ID); err != nil {
		t.Fatalf("second score failed: %v", err)
	}
	if posts.calls != 1 {
		t.Fatalf("cache ignored, %d provider calls", posts.calls)
	}
}

func TestBandFor(t *testing.T) {
	cases := []struct {
		total int
		want  string
	}{
		{0, BandCold}, {20, BandCold}, {21, BandCool}, {40, BandCool},
		{41, BandWarm}, {60, BandWarm}, {61, BandHot}, {80, BandHot},
		{81, BandOnFire}, {100, BandOnFire},
	}
	for _, c := range cases {
		if got := BandFor(c.total); got != c.want {
			t.Errorf("BandFor(%d) = %s, want %s", c.total, got, c.want)
		}
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	// "héllo wörld" repeated: multi-byte runes land on arbitrary byte offsets
	s := strings.Repeat("héllo wörld ", 10)
	for n := 1; n < 30; n++ {
		out := truncate(s, n)
		if !utf8.ValidString(out) {
			t.Fatalf("truncate(%d) produced invalid UTF-8: %q", n, out)
		}
		if len(out) > n+len("…") {
			t.Fatalf("truncate(%d) kept %d bytes", n, len(out))
		}
	}
	if got := truncate("short", 200); got != "short" {
		t.Fatalf("short string changed: %q", got)
	}
}

func TestBreakdownDerivesBandFromTotal(t *testing.T) {
	// the engine's own band claim is ignored
	e := engineScore{Total: 15, Band: "on-fire"}
	if b := e.breakdown(); b.Band != BandCold {
		t.Fatalf("band = %s, want %s", b.Band, BandCold)
	}
}
