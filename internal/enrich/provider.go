// Package enrich talks to the external profile/company enrichment provider.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/thread"
)

// Provider resolves a profile identifier (URL or handle) to person/org facts.
// A nil result with a nil error means the provider knows nothing about the
// profile.
type Provider interface {
	Lookup(ctx context.Context, profileURL string) (*thread.Enrichment, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Configured reports whether the provider can be used at all. Enrichment is an
// optional capability; everything that depends on it checks this first.
func (c Config) Configured() bool { return c.APIKey != "" && c.BaseURL != "" }

// HTTPProvider implements Provider against an enrichment HTTP API.
type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTPProvider(cfg Config) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type lookupResponse struct {
	Person *struct {
		Title    string `json:"title"`
		Company  string `json:"company"`
		Location string `json:"location"`
	} `json:"person"`
	Organization *struct {
		Industry      string  `json:"industry"`
		EmployeeCount int     `json:"employee_count"`
		RevenueMM     float64 `json:"revenue_mm"`
		Website       string  `json:"website"`
	} `json:"organization"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, profileURL string) (*thread.Enrichment, error) {
	endpoint := fmt.Sprintf("%s/v2/enrich?profile=%s", p.cfg.BaseURL, url.QueryEscape(profileURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build enrichment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug().Str("profile", profileURL).Msg("enrichment provider has no data for profile")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("enrichment provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode enrichment response: %w", err)
	}
	if lr.Person == nil && lr.Organization == nil {
		return nil, nil
	}

	e := &thread.Enrichment{FetchedAt: time.Now()}
	if lr.Person != nil {
		e.Title = lr.Person.Title
		e.Company = lr.Person.Company
		e.Location = lr.Person.Location
	}
	if lr.Organization != nil {
		e.Industry = lr.Organization.Industry
		e.EmployeeCount = lr.Organization.EmployeeCount
		e.RevenueMM = lr.Organization.RevenueMM
		e.Website = lr.Organization.Website
	}
	return e, nil
}
