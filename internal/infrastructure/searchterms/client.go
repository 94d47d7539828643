// Package searchterms reads zero-click search terms from the reporting API.
package searchterms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Velocity-Developer/newads/internal/config"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const maxBodyBytes = 32 << 20

var (
	wrapperKeys  = []string{"search_terms", "data", "results", "items"}
	textFields   = []string{"search_term", "keyword", "term", "query", "text"}
	campaignKeys = []string{"campaign_id", "campaignId", "campaign"}
)

// Client fetches zero-click terms over HTTP.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

var _ ports.TermSource = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.SearchTermsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{endpoint: cfg.Endpoint, token: cfg.Token, http: httpClient}
}

// FetchZeroClick returns every candidate in the response. Validation and limit
// truncation happen in the fetch use case.
func (c *Client) FetchZeroClick(ctx context.Context, _ int) ([]domain.TermCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, truncate(string(body), 200))
	}

	return Normalize(body)
}

// Normalize extracts candidates from any of the known response shapes.
func Normalize(body []byte) ([]domain.TermCandidate, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records, ok := unwrap(payload)
	if !ok {
		return nil, fmt.Errorf("search terms payload is not a list: %w", domain.ErrUnexpectedResponse)
	}

	out := make([]domain.TermCandidate, 0, len(records))
	for _, record := range records {
		if candidate, ok := toCandidate(record); ok {
			out = append(out, candidate)
		}
	}
	return out, nil
}

func unwrap(payload any) ([]any, bool) {
	switch v := payload.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range wrapperKeys {
			if list, ok := v[key].([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func toCandidate(record any) (domain.TermCandidate, bool) {
	switch v := record.(type) {
	case string:
		return domain.TermCandidate{Text: v}, true
	case map[string]any:
		for _, field := range textFields {
			if s, ok := v[field].(string); ok && strings.TrimSpace(s) != "" {
				return domain.TermCandidate{Text: s, CampaignID: campaignFrom(v)}, true
			}
		}
	}
	return domain.TermCandidate{}, false
}

// campaignFrom keeps zero as a real campaign id; only missing, null or blank values
// mean "no campaign".
func campaignFrom(record map[string]any) domain.CampaignID {
	for _, key := range campaignKeys {
		switch v := record[key].(type) {
		case json.Number:
			if id, err := v.Int64(); err == nil {
				return domain.NewCampaignID(id)
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if id, err := strconv.ParseInt(s, 10, 64); err == nil {
				return domain.NewCampaignID(id)
			}
		}
	}
	return nil
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
