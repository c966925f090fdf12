// Package collector pages through the external job-search API and persists
// raw response pages for downstream processing.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobpulse/ingest-service/internal/model"
)

const httpTimeout = 15 * time.Second

// ErrRateLimited signals an HTTP 429 from the provider. The collector
// retries the same page after a cooldown instead of counting a failure.
var ErrRateLimited = errors.New("collector: rate limited by provider")

// Client calls the provider's paginated search endpoint. Authentication is
// a static API key sent in a configurable header.
type Client struct {
	BaseURL   string
	APIKey    string
	KeyHeader string
	Country   string
	client    *http.Client
}

// NewClient constructs a Client with a shared HTTP client.
func NewClient(baseURL, apiKey, keyHeader, country string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		KeyHeader: keyHeader,
		Country:   country,
		client:    &http.Client{Timeout: httpTimeout},
	}
}

// searchResponse mirrors the top-level provider JSON: job entries live
// under the "data" key.
type searchResponse struct {
	Data []model.RawJobEntry `json:"data"`
}

// PageResult is one fetched page: the typed entries plus the verbatim body
// that gets persisted as the raw payload.
type PageResult struct {
	StatusCode int
	Entries    []model.RawJobEntry
	Raw        json.RawMessage
	Elapsed    time.Duration
}

// SearchPage fetches a single result page. It returns ErrRateLimited on
// 429 and a descriptive error for any other non-200 response.
func (c *Client) SearchPage(ctx context.Context, query, location string, page int) (*PageResult, error) {
	what := query
	if location != "" {
		what = query + " in " + location
	}

	params := url.Values{}
	params.Set("query", what)
	params.Set("page", strconv.Itoa(page))
	params.Set("num_pages", "1")
	params.Set("country", c.Country)

	reqURL := c.BaseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.KeyHeader, c.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	return &PageResult{
		StatusCode: resp.StatusCode,
		Entries:    apiResp.Data,
		Raw:        json.RawMessage(body),
		Elapsed:    elapsed,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
