// Package search provides the retrieval side of the relay: a web search
// client and a gateway that shields the dispatcher from provider failures.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"relaybot/internal/domain"
)

const searchTimeout = 15 * time.Second

// Brave queries the Brave Search web API.
type Brave struct {
	apiKey  string
	baseURL string
	count   int
	client  *http.Client
}

// NewBrave creates a Brave Search client requesting up to count results
// per query.
func NewBrave(apiKey string, count int) *Brave {
	if count <= 0 {
		count = 3
	}
	return &Brave{
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		count:   count,
		client:  &http.Client{Timeout: searchTimeout},
	}
}

func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web braveWeb `json:"web"`
}

type braveWeb struct {
	Results []braveResult `json:"results"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Search runs a web query and normalizes the hits. Provider errors are
// returned to the caller; the Gateway decides how to degrade.
func (b *Brave) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(b.count))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Description,
		})
	}
	return results, nil
}
