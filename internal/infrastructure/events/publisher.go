// Package events publishes pipeline run summaries to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const flushTimeout = 2 * time.Second

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// RunPublisher sends one JSON message per pipeline run.
type RunPublisher struct {
	conn    conn
	subject string
}

var _ ports.RunPublisher = (*RunPublisher)(nil)

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*RunPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	nc, err := nats.Connect(url,
		nats.Name("newads-pipeline"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return newRunPublisher(nc, subject), nil
}

func newRunPublisher(c conn, subject string) *RunPublisher {
	return &RunPublisher{conn: c, subject: subject}
}

// PublishRun marshals run and waits for the server to acknowledge the flush.
func (p *RunPublisher) PublishRun(ctx context.Context, run domain.PipelineRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish run: %w", err)
	}

	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return ctx.Err()
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush run: %w", err)
	}
	return nil
}

// Close releases the connection.
func (p *RunPublisher) Close() {
	p.conn.Close()
}
