package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/warmline/internal/thread"
)

func TestRecentPosts(t *testing.T) {
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/posts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("limit = %s", r.URL.Query().Get("limit"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth = %s", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"posts": []map[string]any{
				{"content": "shipped v2", "posted_at": at},
				{"content": "hiring a platform engineer", "posted_at": at.Add(24 * time.Hour)},
			},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL, Token: "tok"})
	posts, err := p.RecentPosts(context.Background(), "https://example.com/in/ada", 5)
	if err != nil {
		t.Fatalf("recent posts failed: %v", err)
	}

	want := []thread.Post{
		{Content: "shipped v2", PostedAt: at},
		{Content: "hiring a platform engineer", PostedAt: at.Add(24 * time.Hour)},
	}
	if diff := cmp.Diff(want, posts); diff != "" {
		t.Fatalf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentPostsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL, Token: "tok"})
	if _, err := p.RecentPosts(context.Background(), "x", 5); err == nil {
		t.Fatal("server error swallowed")
	}
}

func TestSendMessagePayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	// high limit so the rate limiter does not slow the test down
	p := NewHTTPProvider(Config{BaseURL: srv.URL, Token: "tok", SendsPerMinute: 6000})
	if err := p.SendMessage(context.Background(), "conv-1", "sounds good"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	want := map[string]string{"target_id": "conv-1", "content": "sounds good"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSendInviteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited by platform", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL, Token: "tok", SendsPerMinute: 6000})
	if err := p.SendInvite(context.Background(), "p-1", "hi"); err == nil {
		t.Fatal("error status swallowed")
	}
}

func TestSendRateLimiterAppliesToSends(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	// 60/min = 1/sec with burst 1: the second send must wait ~1s
	p := NewHTTPProvider(Config{BaseURL: srv.URL, Token: "tok", SendsPerMinute: 60})
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := p.CreatePost(context.Background(), "post"); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("second send not throttled: %s", elapsed)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}
