package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velocity-Developer/newads/internal/domain"
)

type fakeConn struct {
	subject string
	data    []byte
	pubErr  error
	flushed bool
	closed  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.pubErr
}

func (f *fakeConn) FlushTimeout(time.Duration) error {
	f.flushed = true
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestPublishRunSendsJSONSummary(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	p := newRunPublisher(fc, "newads.pipeline.runs")

	run := domain.PipelineRun{
		ID:      "run-1",
		Mode:    domain.ModeExecute,
		Success: false,
		Steps: []domain.StepResult{
			{Command: "fetch-terms", ExitCode: 0, Success: true},
			{Command: "analyze-terms", ExitCode: 1, Error: "boom"},
		},
	}
	require.NoError(t, p.PublishRun(context.Background(), run))

	assert.Equal(t, "newads.pipeline.runs", fc.subject)
	assert.True(t, fc.flushed)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(fc.data, &decoded))
	assert.Equal(t, "run-1", decoded["id"])
	assert.Equal(t, "execute", decoded["mode"])
	assert.Len(t, decoded["steps"], 2)

	p.Close()
	assert.True(t, fc.closed)
}

func TestPublishRunWrapsPublishError(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{pubErr: errors.New("no responders")}
	err := newRunPublisher(fc, "s").PublishRun(context.Background(), domain.PipelineRun{ID: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
	assert.False(t, fc.flushed)
}
