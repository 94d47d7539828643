package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velocity-Developer/newads/internal/domain"
)

type recordingStages struct {
	mu    sync.Mutex
	order []string
	opts  map[string]StageOptions
}

func (r *recordingStages) stage(name string, fn func() error) Stage {
	return StageFunc(func(_ context.Context, opts StageOptions) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		if r.opts == nil {
			r.opts = map[string]StageOptions{}
		}
		r.opts[name] = opts
		r.mu.Unlock()
		if fn != nil {
			return fn()
		}
		return nil
	})
}

func newTestPipeline(rec *recordingStages, overrides map[string]func() error, publisher *fakePublisher, metrics *fakeMetrics) *Pipeline {
	deps := PipelineDeps{
		FetchTerms:     rec.stage(StepFetchTerms, overrides[StepFetchTerms]),
		AnalyzeTerms:   rec.stage(StepAnalyzeTerms, overrides[StepAnalyzeTerms]),
		SubmitTerms:    rec.stage(StepSubmitTerms, overrides[StepSubmitTerms]),
		ProcessPhrases: rec.stage(StepProcessPhrases, overrides[StepProcessPhrases]),
		AnalyzePhrases: rec.stage(StepAnalyzePhrases, overrides[StepAnalyzePhrases]),
		SubmitPhrases:  rec.stage(StepSubmitPhrases, overrides[StepSubmitPhrases]),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	return NewPipeline(deps)
}

func TestPipelineRunsAllStepsInOrder(t *testing.T) {
	t.Parallel()

	rec := &recordingStages{}
	publisher := &fakePublisher{}
	metrics := newFakeMetrics()
	p := newTestPipeline(rec, nil, publisher, metrics)

	run := p.Run(context.Background(), PipelineOptions{Mode: domain.ModeExecute, BatchSize: 25})

	assert.Equal(t, StepOrder, rec.order)
	assert.True(t, run.Success)
	assert.Equal(t, 0, ExitCode(run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.ModeExecute, run.Mode)
	require.Len(t, run.Steps, 6)
	for i, step := range run.Steps {
		assert.Equal(t, StepOrder[i], step.Command)
		assert.Zero(t, step.ExitCode)
		assert.True(t, step.Success)
		assert.Equal(t, "25", step.Options["batch-size"])
	}

	require.Len(t, publisher.runs, 1)
	assert.Equal(t, run.ID, publisher.runs[0].ID)
	assert.Len(t, metrics.steps, 6)
}

func TestPipelinePropagatesModeOnlyToSubmitSteps(t *testing.T) {
	t.Parallel()

	rec := &recordingStages{}
	run := newTestPipeline(rec, nil, nil, nil).Run(context.Background(), PipelineOptions{Mode: domain.ModeExecute})

	assert.Equal(t, domain.ModeExecute, rec.opts[StepSubmitTerms].Mode)
	assert.Equal(t, domain.ModeExecute, rec.opts[StepSubmitPhrases].Mode)
	assert.Empty(t, rec.opts[StepFetchTerms].Mode)
	assert.Empty(t, rec.opts[StepAnalyzePhrases].Mode)
	assert.Equal(t, "execute", run.Steps[2].Options["mode"])
	assert.NotContains(t, run.Steps[0].Options, "mode")
}

func TestPipelineDefaultsToValidateMode(t *testing.T) {
	t.Parallel()

	rec := &recordingStages{}
	run := newTestPipeline(rec, nil, nil, nil).Run(context.Background(), PipelineOptions{})

	assert.Equal(t, domain.ModeValidate, run.Mode)
	assert.Equal(t, domain.ModeValidate, rec.opts[StepSubmitTerms].Mode)
}

func TestPipelineContinuesAfterFailures(t *testing.T) {
	t.Parallel()

	rec := &recordingStages{}
	metrics := newFakeMetrics()
	p := newTestPipeline(rec, map[string]func() error{
		StepAnalyzeTerms: func() error { return errors.New("classifier down") },
		StepProcessPhrases: func() error {
			panic("nil map")
		},
	}, nil, metrics)

	run := p.Run(context.Background(), PipelineOptions{})

	assert.Equal(t, StepOrder, rec.order, "every step runs regardless of earlier failures")
	assert.False(t, run.Success)
	assert.Equal(t, 1, ExitCode(run))

	analyze := run.Steps[1]
	assert.Equal(t, 1, analyze.ExitCode)
	assert.False(t, analyze.Success)
	assert.Equal(t, "classifier down", analyze.Error)

	process := run.Steps[3]
	assert.Equal(t, 1, process.ExitCode)
	assert.Contains(t, process.Error, "panic: nil map")

	assert.True(t, run.Steps[5].Success)
	assert.False(t, metrics.steps[StepProcessPhrases])
	assert.True(t, metrics.steps[StepSubmitPhrases])
}

func TestPipelinePublishFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{err: errors.New("nats down")}
	run := newTestPipeline(&recordingStages{}, nil, publisher, nil).Run(context.Background(), PipelineOptions{})

	assert.True(t, run.Success)
	assert.Len(t, publisher.runs, 1)
}

func TestPipelineStageLookup(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{FetchTerms: StageFunc(func(context.Context, StageOptions) error { return nil })})

	_, err := p.Stage(StepFetchTerms)
	require.NoError(t, err)

	_, err = p.Stage(StepSubmitTerms)
	assert.ErrorContains(t, err, "not configured")

	_, err = p.Stage("unknown")
	assert.ErrorContains(t, err, "not registered")

	run := p.Run(context.Background(), PipelineOptions{})
	assert.False(t, run.Success)
	assert.True(t, run.Steps[0].Success)
	assert.Equal(t, 1, run.Steps[1].ExitCode)
}

func TestPipelineStampsRunInConfiguredLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("WIB", 7*60*60)
	p := NewPipeline(PipelineDeps{Location: loc})

	run := p.Run(context.Background(), PipelineOptions{})
	assert.Equal(t, loc, run.StartedAt.Location())
}
