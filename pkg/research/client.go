package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SearchRequest is the web search request shape.
type SearchRequest struct {
	Query          string `json:"query"`
	SearchDepth    string `json:"search_depth"`
	IncludeAnswer  bool   `json:"include_answer"`
	IncludeRawBody bool   `json:"include_raw_content"`
	MaxResults     int    `json:"max_results"`
}

// SearchResult is one hit.
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// SearchResponse is the full search answer.
type SearchResponse struct {
	Query        string         `json:"query"`
	Answer       string         `json:"answer,omitempty"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

// Client performs web searches.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// HTTPClient talks to a Tavily-compatible search API.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHTTPClient(apiKey, baseURL string) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 45 * time.Second},
	}
}

func (c *HTTPClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	payload := struct {
		SearchRequest
		APIKey string `json:"api_key"`
	}{SearchRequest: req, APIKey: c.apiKey}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("search API status %d: %s", resp.StatusCode, string(data))
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
