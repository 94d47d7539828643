// Package adsapi talks to the negative-keyword input API of the ads platform.
package adsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Velocity-Developer/newads/internal/config"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/infrastructure/httpretry"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const maxBodyBytes = 1 << 20

// Client submits batched negative keywords for one campaign group per call.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

var _ ports.KeywordSubmitter = (*Client)(nil)

// NewClient creates a client whose connection failures are retried with a fixed delay.
func NewClient(cfg config.SubmitterConfig) *Client {
	return newClient(cfg, nil)
}

func newClient(cfg config.SubmitterConfig, base http.RoundTripper) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		http: httpretry.NewClient(httpretry.Options{
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
			Policy:      httpretry.ConnectionErrors,
			Base:        base,
		}),
	}
}

type response struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Submit posts one form-encoded request. A transport failure after retries is returned
// as an error together with a failed result; any HTTP response yields a nil error.
func (c *Client) Submit(ctx context.Context, texts []string, match domain.MatchType, mode domain.Mode, campaignID domain.CampaignID) (domain.SubmissionResult, error) {
	form := url.Values{}
	form.Set("match_type", string(match))
	form.Set("mode", string(mode))
	for _, text := range texts {
		form.Add("terms[]", text)
	}
	if campaignID != nil {
		form.Set("campaign_id", strconv.FormatInt(*campaignID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.SubmissionResult{Error: err.Error()}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SubmissionResult{Error: err.Error()}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.SubmissionResult{HTTPStatus: resp.StatusCode, Error: err.Error()}, fmt.Errorf("read body: %w", err)
	}

	return interpret(resp.StatusCode, raw), nil
}

// interpret prefers the body's success flag and falls back to the HTTP status.
func interpret(status int, raw []byte) domain.SubmissionResult {
	result := domain.SubmissionResult{
		HTTPStatus: status,
		Body:       string(raw),
		Success:    status >= 200 && status < 300,
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err == nil {
		if decoded.Success != nil {
			result.Success = *decoded.Success
		}
		if !result.Success {
			result.Error = firstNonEmpty(decoded.Error, decoded.Message)
		}
	}

	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("negative keyword API returned HTTP %d", status)
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
