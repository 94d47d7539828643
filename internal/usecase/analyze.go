package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const (
	kindTerm   = "term"
	kindPhrase = "phrase"
)

// TermAnalyzer labels unclassified Terms as relevant or negative.
type TermAnalyzer struct {
	terms      ports.TermRepository
	classifier ports.Classifier
	metrics    ports.Metrics
	logger     *slog.Logger
}

// NewTermAnalyzer wires the Term classification stage.
func NewTermAnalyzer(terms ports.TermRepository, classifier ports.Classifier, metrics ports.Metrics, logger *slog.Logger) *TermAnalyzer {
	return &TermAnalyzer{terms: terms, classifier: classifier, metrics: metrics, logger: orDiscard(logger)}
}

// Run executes the analyze-terms stage.
func (a *TermAnalyzer) Run(ctx context.Context, opts StageOptions) error {
	terms, err := a.terms.ListUnclassified(ctx, opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list unclassified terms: %w", err)
	}

	var labeled int
	for _, term := range terms {
		verdict := classifyOne(ctx, a.classifier, a.metrics, a.logger, kindTerm, term.Text)
		if verdict == nil {
			if err := a.terms.RecordClassifyAttempt(ctx, term.ID); err != nil {
				a.logger.Warn("record classify attempt", "term", term.Text, "error", err)
			}
			continue
		}
		ok, err := a.terms.SetVerdict(ctx, term.ID, *verdict)
		if err != nil {
			a.logger.Error("save term verdict", "term", term.Text, "error", err)
			continue
		}
		if ok {
			labeled++
		}
	}

	a.logger.Info("terms analyzed", "selected", len(terms), "labeled", labeled)
	return nil
}

// PhraseAnalyzer labels unclassified Phrases as local-language or foreign.
type PhraseAnalyzer struct {
	phrases    ports.PhraseRepository
	classifier ports.Classifier
	metrics    ports.Metrics
	logger     *slog.Logger
}

// NewPhraseAnalyzer wires the Phrase classification stage.
func NewPhraseAnalyzer(phrases ports.PhraseRepository, classifier ports.Classifier, metrics ports.Metrics, logger *slog.Logger) *PhraseAnalyzer {
	return &PhraseAnalyzer{phrases: phrases, classifier: classifier, metrics: metrics, logger: orDiscard(logger)}
}

// Run executes the analyze-frasa stage.
func (a *PhraseAnalyzer) Run(ctx context.Context, opts StageOptions) error {
	phrases, err := a.phrases.ListUnclassified(ctx, opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list unclassified phrases: %w", err)
	}

	var labeled int
	for _, phrase := range phrases {
		verdict := classifyOne(ctx, a.classifier, a.metrics, a.logger, kindPhrase, phrase.Text)
		if verdict == nil {
			if err := a.phrases.RecordClassifyAttempt(ctx, phrase.ID); err != nil {
				a.logger.Warn("record classify attempt", "phrase", phrase.Text, "error", err)
			}
			continue
		}
		ok, err := a.phrases.SetVerdict(ctx, phrase.ID, *verdict)
		if err != nil {
			a.logger.Error("save phrase verdict", "phrase", phrase.Text, "error", err)
			continue
		}
		if ok {
			labeled++
		}
	}

	a.logger.Info("phrases analyzed", "selected", len(phrases), "labeled", labeled)
	return nil
}

// classifyOne isolates a single item's classification failure from the rest of the stage.
func classifyOne(ctx context.Context, c ports.Classifier, m ports.Metrics, logger *slog.Logger, kind, text string) *domain.Verdict {
	verdict, err := c.Classify(ctx, text)
	switch {
	case err != nil:
		logger.Error("classification failed, item skipped", kind, text, "error", err)
		observeClassification(m, kind, "error")
		return nil
	case verdict == nil:
		logger.Warn("classification unresolved, item left unlabeled", kind, text)
		observeClassification(m, kind, "unresolved")
		return nil
	default:
		observeClassification(m, kind, string(*verdict))
		return verdict
	}
}

func observeClassification(m ports.Metrics, kind, outcome string) {
	if m != nil {
		m.ObserveClassification(kind, outcome)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
