package ports

import (
	"context"

	"github.com/Velocity-Developer/newads/internal/domain"
)

// TermSource pulls zero-click search terms from the reporting API.
type TermSource interface {
	FetchZeroClick(ctx context.Context, limit int) ([]domain.TermCandidate, error)
}

// TermRepository persists Terms.
type TermRepository interface {
	// InsertNew stores candidates whose text is not yet known and returns how many were added.
	InsertNew(ctx context.Context, candidates []domain.TermCandidate) (int, error)
	// ListUnclassified returns Terms without a verdict, fewest classify attempts first.
	ListUnclassified(ctx context.Context, limit int) ([]domain.Term, error)
	// SetVerdict writes a verdict only when the Term has none yet.
	SetVerdict(ctx context.Context, id int64, verdict domain.Verdict) (bool, error)
	// RecordClassifyAttempt counts a classification that produced no verdict.
	RecordClassifyAttempt(ctx context.Context, id int64) error
	// ListNegativeWithoutPhrases returns negative Terms that have not been split yet.
	ListNegativeWithoutPhrases(ctx context.Context, limit int) ([]domain.Term, error)
	// MarkPhrasesExtracted records that a Term was split, even when it yielded no Phrases.
	MarkPhrasesExtracted(ctx context.Context, id int64) error
	SubmissionStore
}

// PhraseRepository persists Phrases.
type PhraseRepository interface {
	// InsertForTerm creates Phrases for the parent Term, skipping texts that exist already.
	InsertForTerm(ctx context.Context, term domain.Term, texts []string) (int, error)
	ListUnclassified(ctx context.Context, limit int) ([]domain.Phrase, error)
	SetVerdict(ctx context.Context, id int64, verdict domain.Verdict) (bool, error)
	RecordClassifyAttempt(ctx context.Context, id int64) error
	SubmissionStore
}

// SubmissionStore is the per-item state machine storage shared by Terms and Phrases.
type SubmissionStore interface {
	// ListPendingSubmission returns eligible items that are unsubmitted or retryable.
	ListPendingSubmission(ctx context.Context, limit int) ([]domain.SubmissionItem, error)
	MarkSubmitted(ctx context.Context, ids []int64) error
	// RecordFailure applies domain.NextFailureState to each item. Items whose stored retry
	// count no longer matches the listed one are left alone.
	RecordFailure(ctx context.Context, items []domain.SubmissionItem) error
	MarkNotified(ctx context.Context, ids []int64) error
}

// BlacklistRepository reads active blacklist entries.
type BlacklistRepository interface {
	ListActive(ctx context.Context) ([]domain.BlacklistEntry, error)
}

// Blacklist answers membership questions against active blacklist words.
type Blacklist interface {
	Contains(ctx context.Context, word string) (bool, error)
	Invalidate()
}

// Classifier labels one term or phrase. A nil verdict with nil error means unresolved.
type Classifier interface {
	Classify(ctx context.Context, text string) (*domain.Verdict, error)
}

// ChatClient sends one chat-completion request and returns the assistant text.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// KeywordSubmitter sends one batched negative-keyword request for a single campaign group.
type KeywordSubmitter interface {
	Submit(ctx context.Context, texts []string, match domain.MatchType, mode domain.Mode, campaignID domain.CampaignID) (domain.SubmissionResult, error)
}

// Notifier streams human-readable messages to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, html string) error
}

// RunPublisher publishes pipeline run summaries to an event bus.
type RunPublisher interface {
	PublishRun(ctx context.Context, run domain.PipelineRun) error
}

// Locker guards a named command against overlapping executions.
type Locker interface {
	// TryLock returns ok=false when another holder owns the lock.
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

// Metrics records pipeline telemetry.
type Metrics interface {
	ObserveStep(step string, success bool, seconds float64)
	ObserveSubmission(match domain.MatchType, mode domain.Mode, success bool, items int)
	ObserveClassification(kind string, outcome string)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context)) error
	Stop(ctx context.Context) error
}
