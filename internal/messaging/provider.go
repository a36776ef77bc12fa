// Package messaging talks to the external messaging provider that delivers
// outbound messages and invites and serves a contact's historical posts.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/warmline/internal/thread"
)

// Provider is the messaging provider contract. Post fetching and sending may
// fail independently of each other.
type Provider interface {
	RecentPosts(ctx context.Context, profileURL string, limit int) ([]thread.Post, error)
	SendMessage(ctx context.Context, targetID, content string) error
	SendInvite(ctx context.Context, targetID, note string) error
	CreatePost(ctx context.Context, content string) error
	React(ctx context.Context, targetID, reaction string) error
	Comment(ctx context.Context, targetID, content string) error
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// SendsPerMinute caps outbound deliveries; message platforms throttle or
	// flag accounts that burst. Zero means 6/minute.
	SendsPerMinute int
}

func (c Config) Configured() bool { return c.BaseURL != "" && c.Token != "" }

// HTTPProvider implements Provider against the messaging sidecar's HTTP API.
type HTTPProvider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPProvider(cfg Config) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perMinute := cfg.SendsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

type postsResponse struct {
	Posts []struct {
		Content  string    `json:"content"`
		PostedAt time.Time `json:"posted_at"`
	} `json:"posts"`
}

func (p *HTTPProvider) RecentPosts(ctx context.Context, profileURL string, limit int) ([]thread.Post, error) {
	endpoint := fmt.Sprintf("%s/api/v1/posts?profile=%s&limit=%d", p.cfg.BaseURL, url.QueryEscape(profileURL), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build posts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posts request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("messaging provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var pr postsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode posts response: %w", err)
	}
	posts := make([]thread.Post, 0, len(pr.Posts))
	for _, item := range pr.Posts {
		posts = append(posts, thread.Post{Content: item.Content, PostedAt: item.PostedAt})
	}
	log.Debug().Str("profile", profileURL).Int("posts", len(posts)).Msg("fetched recent posts")
	return posts, nil
}

func (p *HTTPProvider) SendMessage(ctx context.Context, targetID, content string) error {
	return p.post(ctx, "/api/v1/messages", map[string]string{
		"target_id": targetID,
		"content":   content,
	})
}

func (p *HTTPProvider) SendInvite(ctx context.Context, targetID, note string) error {
	return p.post(ctx, "/api/v1/invites", map[string]string{
		"target_id": targetID,
		"note":      note,
	})
}

func (p *HTTPProvider) CreatePost(ctx context.Context, content string) error {
	return p.post(ctx, "/api/v1/posts", map[string]string{"content": content})
}

func (p *HTTPProvider) React(ctx context.Context, targetID, reaction string) error {
	return p.post(ctx, "/api/v1/reactions", map[string]string{
		"target_id": targetID,
		"reaction":  reaction,
	})
}

func (p *HTTPProvider) Comment(ctx context.Context, targetID, content string) error {
	return p.post(ctx, "/api/v1/comments", map[string]string{
		"target_id": targetID,
		"content":   content,
	})
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload map[string]string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("messaging provider returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
