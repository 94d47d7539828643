package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// Step names in execution order.
const (
	StepFetchTerms     = "fetch-terms"
	StepAnalyzeTerms   = "analyze-terms"
	StepSubmitTerms    = "submit-terms"
	StepProcessPhrases = "process-phrases"
	StepAnalyzePhrases = "analyze-frasa"
	StepSubmitPhrases  = "submit-frasa"
)

// StepOrder is the fixed order the orchestrator runs stages in.
var StepOrder = []string{
	StepFetchTerms,
	StepAnalyzeTerms,
	StepSubmitTerms,
	StepProcessPhrases,
	StepAnalyzePhrases,
	StepSubmitPhrases,
}

// Stage is one runnable pipeline step.
type Stage interface {
	Run(ctx context.Context, opts StageOptions) error
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, opts StageOptions) error

// Run calls f.
func (f StageFunc) Run(ctx context.Context, opts StageOptions) error { return f(ctx, opts) }

// PipelineDeps wires all stages and driven adapters into the orchestrator.
type PipelineDeps struct {
	FetchTerms     Stage
	AnalyzeTerms   Stage
	SubmitTerms    Stage
	ProcessPhrases Stage
	AnalyzePhrases Stage
	SubmitPhrases  Stage

	Publisher ports.RunPublisher
	Metrics   ports.Metrics
	Logger    *slog.Logger
	// Location sets the timezone of run timestamps; nil keeps the local zone.
	Location *time.Location
}

// PipelineOptions configures one orchestrated run.
type PipelineOptions struct {
	Mode      domain.Mode
	BatchSize int
}

// Pipeline runs the negative-keyword stages in order as one batch job.
type Pipeline struct {
	stages    map[string]Stage
	publisher ports.RunPublisher
	metrics   ports.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline constructs the orchestrator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		stages: map[string]Stage{
			StepFetchTerms:     deps.FetchTerms,
			StepAnalyzeTerms:   deps.AnalyzeTerms,
			StepSubmitTerms:    deps.SubmitTerms,
			StepProcessPhrases: deps.ProcessPhrases,
			StepAnalyzePhrases: deps.AnalyzePhrases,
			StepSubmitPhrases:  deps.SubmitPhrases,
		},
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    orDiscard(deps.Logger),
		now:       clock(deps.Location),
	}
}

func clock(loc *time.Location) func() time.Time {
	if loc == nil {
		return time.Now
	}
	return func() time.Time { return time.Now().In(loc) }
}

// Stage resolves a stage by its command name.
func (p *Pipeline) Stage(name string) (Stage, error) {
	stage, ok := p.stages[name]
	if !ok {
		return nil, fmt.Errorf("stage %s is not registered", name)
	}
	if stage == nil {
		return nil, fmt.Errorf("stage %s is not configured", name)
	}
	return stage, nil
}

// Run executes every step regardless of earlier failures and returns the summary.
func (p *Pipeline) Run(ctx context.Context, opts PipelineOptions) domain.PipelineRun {
	if opts.Mode == "" {
		opts.Mode = domain.ModeValidate
	}

	start := p.now()
	run := domain.PipelineRun{
		ID:        uuid.NewString(),
		Mode:      opts.Mode,
		StartedAt: start,
		Success:   true,
	}
	logger := p.logger.With("run_id", run.ID)
	logger.Info("pipeline started", "mode", opts.Mode, "batch_size", opts.BatchSize)

	for _, name := range StepOrder {
		stageOpts := StageOptions{BatchSize: opts.BatchSize}
		if name == StepSubmitTerms || name == StepSubmitPhrases {
			stageOpts.Mode = opts.Mode
		}

		result := p.runStep(ctx, name, stageOpts)
		if !result.Success {
			run.Success = false
			logger.Error("pipeline step failed", "step", name, "error", result.Error)
		} else {
			logger.Info("pipeline step finished", "step", name, "duration_ms", result.DurationMS)
		}
		run.Steps = append(run.Steps, result)
	}

	run.DurationMS = p.now().Sub(start).Milliseconds()
	logger.Info("pipeline finished", "success", run.Success, "duration_ms", run.DurationMS)

	if p.publisher != nil {
		if err := p.publisher.PublishRun(ctx, run); err != nil {
			logger.Warn("publish run summary", "error", err)
		}
	}
	return run
}

func (p *Pipeline) runStep(ctx context.Context, name string, opts StageOptions) (result domain.StepResult) {
	started := p.now()
	result = domain.StepResult{Command: name, Options: opts.asMap()}

	defer func() {
		if r := recover(); r != nil {
			result.ExitCode = 1
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		elapsed := p.now().Sub(started)
		result.DurationMS = elapsed.Milliseconds()
		if p.metrics != nil {
			p.metrics.ObserveStep(name, result.Success, elapsed.Seconds())
		}
	}()

	stage, err := p.Stage(name)
	if err == nil {
		err = stage.Run(ctx, opts)
	}
	if err != nil {
		result.ExitCode = 1
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

// ExitCode maps a run summary to a process exit status.
func ExitCode(run domain.PipelineRun) int {
	for _, step := range run.Steps {
		if step.ExitCode != 0 {
			return 1
		}
	}
	return 0
}
