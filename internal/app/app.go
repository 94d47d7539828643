package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Velocity-Developer/newads/internal/config"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/infrastructure/adsapi"
	"github.com/Velocity-Developer/newads/internal/infrastructure/cache"
	"github.com/Velocity-Developer/newads/internal/infrastructure/events"
	"github.com/Velocity-Developer/newads/internal/infrastructure/httpapi"
	"github.com/Velocity-Developer/newads/internal/infrastructure/llm"
	"github.com/Velocity-Developer/newads/internal/infrastructure/metrics"
	"github.com/Velocity-Developer/newads/internal/infrastructure/scheduler"
	"github.com/Velocity-Developer/newads/internal/infrastructure/searchterms"
	"github.com/Velocity-Developer/newads/internal/infrastructure/storage"
	"github.com/Velocity-Developer/newads/internal/infrastructure/telegram"
	"github.com/Velocity-Developer/newads/internal/logging"
	"github.com/Velocity-Developer/newads/internal/ports"
	"github.com/Velocity-Developer/newads/internal/usecase"
)

const (
	lockPrefix      = "negative-keywords:"
	shutdownTimeout = 10 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	blacklist *cache.Blacklist
	locker    *storage.AdvisoryLocker
	publisher *events.RunPublisher
}

// New opens the database and builds the process-wide collaborators shared by every command.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		registry:  registry,
		metrics:   metrics.NewCollector(registry),
		blacklist: cache.NewBlacklist(storage.NewBlacklistRepository(db), cfg.Blacklist.CacheTTL),
		locker:    storage.NewAdvisoryLocker(db, baseLogger.With("component", "lock")),
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject, baseLogger.With("component", "events"))
		if err != nil {
			baseLogger.Warn("run summaries will not be published", "error", err)
		} else {
			a.publisher = pub
		}
	}
	return a, nil
}

// Close releases the database pool and the event connection.
func (a *Application) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

// Stage builds the named stage, checking only the configuration that stage needs.
func (a *Application) Stage(name string) (usecase.Stage, error) {
	terms := storage.NewTermRepository(a.db)
	phrases := storage.NewPhraseRepository(a.db)
	logger := a.logger.With("component", name)

	switch name {
	case usecase.StepFetchTerms:
		if err := a.cfg.RequireSearchTerms(); err != nil {
			return nil, err
		}
		return usecase.NewTermFetcher(searchterms.NewClient(a.cfg.SearchTerms, nil), terms, logger), nil

	case usecase.StepAnalyzeTerms:
		if err := a.cfg.RequireClassifier(); err != nil {
			return nil, err
		}
		classifier := llm.NewTermClassifier(llm.NewChatGPTClient(a.cfg.Classifier), logger)
		return usecase.NewTermAnalyzer(terms, classifier, a.metrics, logger), nil

	case usecase.StepAnalyzePhrases:
		if err := a.cfg.RequireClassifier(); err != nil {
			return nil, err
		}
		classifier := llm.NewPhraseClassifier(llm.NewChatGPTClient(a.cfg.Classifier), logger)
		return usecase.NewPhraseAnalyzer(phrases, classifier, a.metrics, logger), nil

	case usecase.StepProcessPhrases:
		return usecase.NewPhraseExtractor(terms, phrases, a.blacklist, logger), nil

	case usecase.StepSubmitTerms:
		return a.submission(terms, domain.MatchExact, "terms", logger)

	case usecase.StepSubmitPhrases:
		return a.submission(phrases, domain.MatchPhrase, "phrases", logger)

	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

func (a *Application) submission(store ports.SubmissionStore, match domain.MatchType, label string, logger *slog.Logger) (usecase.Stage, error) {
	if err := a.cfg.RequireSubmitter(); err != nil {
		return nil, err
	}
	deps := usecase.SubmitterDeps{
		Store:     store,
		Client:    adsapi.NewClient(a.cfg.Submitter),
		Metrics:   a.metrics,
		Logger:    logger,
		MatchType: match,
		Label:     label,
	}
	if a.cfg.TelegramEnabled() {
		deps.Notifier = telegram.NewNotifier(a.cfg.Notifications.Telegram)
	} else {
		logger.Debug("telegram is not configured, notifications disabled")
	}
	return usecase.NewKeywordSubmission(deps), nil
}

// Pipeline builds the orchestrator with every stage. Missing configuration for any stage
// fails before a single step runs.
func (a *Application) Pipeline() (*usecase.Pipeline, error) {
	stages := make(map[string]usecase.Stage, len(usecase.StepOrder))
	var errs []error
	for _, name := range usecase.StepOrder {
		stage, err := a.Stage(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		stages[name] = stage
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	deps := usecase.PipelineDeps{
		FetchTerms:     stages[usecase.StepFetchTerms],
		AnalyzeTerms:   stages[usecase.StepAnalyzeTerms],
		SubmitTerms:    stages[usecase.StepSubmitTerms],
		ProcessPhrases: stages[usecase.StepProcessPhrases],
		AnalyzePhrases: stages[usecase.StepAnalyzePhrases],
		SubmitPhrases:  stages[usecase.StepSubmitPhrases],
		Metrics:        a.metrics,
		Logger:         a.logger.With("component", "pipeline"),
		Location:       a.cfg.Scheduler.Location(),
	}
	if a.publisher != nil {
		deps.Publisher = a.publisher
	}
	return usecase.NewPipeline(deps), nil
}

// RunStage executes one stage under its overlap lock. skipped=true means another process
// is running the same command.
func (a *Application) RunStage(ctx context.Context, name string, opts usecase.StageOptions) (skipped bool, err error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}
	stage, err := a.Stage(name)
	if err != nil {
		return false, err
	}

	ran, err := usecase.WithLock(ctx, a.locker, lockPrefix+name, func(ctx context.Context) error {
		started := time.Now()
		err := stage.Run(ctx, opts)
		a.metrics.ObserveStep(name, err == nil, time.Since(started).Seconds())
		return err
	})
	if !ran && err == nil {
		a.logger.Info("command already running, skipped", "command", name)
	}
	return !ran && err == nil, err
}

// RunPipeline executes the orchestrated run once under the pipeline lock.
func (a *Application) RunPipeline(ctx context.Context, opts usecase.PipelineOptions) (domain.PipelineRun, bool, error) {
	if err := (usecase.StageOptions{BatchSize: opts.BatchSize, Mode: opts.Mode}).Validate(); err != nil {
		return domain.PipelineRun{}, false, err
	}
	pipeline, err := a.Pipeline()
	if err != nil {
		return domain.PipelineRun{}, false, err
	}
	return usecase.NewScheduler(nil, pipeline, a.locker, opts, a.logger.With("component", "pipeline")).RunOnce(ctx)
}

// Schedule runs the pipeline every interval until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context, interval time.Duration, opts usecase.PipelineOptions) error {
	sched, err := a.scheduler(interval, opts)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "interval", interval, "mode", opts.Mode, "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()
	return a.stopScheduler(sched)
}

// Serve exposes the admin HTTP surface until ctx is cancelled. With schedule=true the
// pipeline runs in the same process, sharing the blacklist cache the hook invalidates.
func (a *Application) Serve(ctx context.Context, schedule bool, interval time.Duration, opts usecase.PipelineOptions) error {
	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.RouterDeps{
			Gatherer:  a.registry,
			Blacklist: a.blacklist,
			Stats: func(ctx context.Context) (any, error) {
				return storage.Stats(ctx, a.db)
			},
			Logger: a.logger.With("component", "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *usecase.Scheduler
	if schedule {
		var err error
		if sched, err = a.scheduler(interval, opts); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		a.logger.Info("scheduler started", "interval", interval, "mode", opts.Mode)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("admin server shutdown", "error", err)
	}
	if sched != nil {
		if err := a.stopScheduler(sched); err != nil {
			a.logger.Warn("scheduler shutdown", "error", err)
		}
	}
	return serveErr
}

// Stats returns item counts per verdict and submission status.
func (a *Application) Stats(ctx context.Context) ([]storage.StatusCount, error) {
	return storage.Stats(ctx, a.db)
}

func (a *Application) scheduler(interval time.Duration, opts usecase.PipelineOptions) (*usecase.Scheduler, error) {
	if interval <= 0 {
		interval = a.cfg.Scheduler.Interval
	}
	pipeline, err := a.Pipeline()
	if err != nil {
		return nil, err
	}
	driver := scheduler.NewIntervalScheduler(interval, a.logger.With("component", "scheduler"))
	return usecase.NewScheduler(driver, pipeline, a.locker, opts, a.logger.With("component", "pipeline")), nil
}

func (a *Application) stopScheduler(sched *usecase.Scheduler) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sched.Stop(ctx)
}

// Migrate applies the embedded schema migrations.
func Migrate(cfg config.Config) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	return storage.Migrate(cfg.Database.DSN)
}
