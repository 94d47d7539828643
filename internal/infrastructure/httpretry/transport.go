// Package httpretry retries outbound HTTP requests with a fixed delay.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Policy decides which outcomes are retried.
type Policy int

const (
	// ConnectionErrors retries only transport-level failures.
	ConnectionErrors Policy = iota
	// ConnectionAndServerErrors additionally retries 429 and 5xx responses.
	ConnectionAndServerErrors
)

// Options configures NewClient.
type Options struct {
	// Timeout bounds each attempt, including reading the response body.
	Timeout time.Duration
	// ConnectTimeout bounds dialing; zero keeps the default dialer.
	ConnectTimeout time.Duration
	MaxAttempts    int
	Delay          time.Duration
	Policy         Policy
	// Base overrides the underlying transport (tests).
	Base http.RoundTripper
}

// NewClient returns an http.Client whose requests are retried according to opts.
func NewClient(opts Options) *http.Client {
	base := opts.Base
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.ConnectTimeout > 0 {
			t.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
		}
		base = t
	}
	return &http.Client{Transport: &Transport{
		Base:           base,
		MaxAttempts:    opts.MaxAttempts,
		Delay:          opts.Delay,
		Policy:         opts.Policy,
		AttemptTimeout: opts.Timeout,
	}}
}

// Transport is an http.RoundTripper that replays a request up to MaxAttempts times.
type Transport struct {
	Base           http.RoundTripper
	MaxAttempts    int
	Delay          time.Duration
	Policy         Policy
	AttemptTimeout time.Duration
}

// Retryable reports whether a status code is worth another attempt.
func Retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := max(t.MaxAttempts, 1)
	rewindable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(t.Delay):
			}
		}

		attemptReq, cancel, err := t.prepare(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := base.RoundTrip(attemptReq)
		last := attempt == attempts || !rewindable
		if err != nil {
			cancel()
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			if last {
				break
			}
			continue
		}

		if t.Policy == ConnectionAndServerErrors && Retryable(resp.StatusCode) && !last {
			drain(resp)
			cancel()
			continue
		}

		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (t *Transport) prepare(req *http.Request, attempt int) (*http.Request, context.CancelFunc, error) {
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if t.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.AttemptTimeout)
	}

	out := req.Clone(ctx)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
	}
	return out, cancel, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
