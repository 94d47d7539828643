package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Velocity-Developer/newads/internal/ports"
)

// PhraseExtractor splits negative Terms into single-word Phrase candidates.
type PhraseExtractor struct {
	terms     ports.TermRepository
	phrases   ports.PhraseRepository
	blacklist ports.Blacklist
	logger    *slog.Logger
}

// NewPhraseExtractor wires the process-phrases stage.
func NewPhraseExtractor(terms ports.TermRepository, phrases ports.PhraseRepository, blacklist ports.Blacklist, logger *slog.Logger) *PhraseExtractor {
	return &PhraseExtractor{terms: terms, phrases: phrases, blacklist: blacklist, logger: orDiscard(logger)}
}

// Extract returns the tokens of text that survive the blacklist, deduplicated
// case-insensitively with first-seen casing and order preserved.
func (e *PhraseExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range strings.Fields(text) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		key := strings.ToLower(token)
		if _, dup := seen[key]; dup {
			continue
		}
		if e.blacklist != nil {
			blocked, err := e.blacklist.Contains(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("blacklist lookup: %w", err)
			}
			if blocked {
				continue
			}
		}
		seen[key] = struct{}{}
		out = append(out, token)
	}
	return out, nil
}

// Run executes the process-phrases stage over negative Terms that were not split yet.
// A Term is marked extracted once its Phrases are stored, also when every token was
// blacklisted or already known, so it is never selected again.
func (e *PhraseExtractor) Run(ctx context.Context, opts StageOptions) error {
	terms, err := e.terms.ListNegativeWithoutPhrases(ctx, opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list negative terms: %w", err)
	}

	var created int
	for _, term := range terms {
		texts, err := e.Extract(ctx, term.Text)
		if err != nil {
			e.logger.Error("extract phrases", "term", term.Text, "error", err)
			continue
		}
		n, err := e.phrases.InsertForTerm(ctx, term, texts)
		if err != nil {
			e.logger.Error("store phrases", "term", term.Text, "error", err)
			continue
		}
		if n == 0 {
			e.logger.Debug("term produced no new phrases", "term", term.Text, "tokens", len(texts))
		}
		created += n

		if err := e.terms.MarkPhrasesExtracted(ctx, term.ID); err != nil {
			e.logger.Error("mark term extracted", "term", term.Text, "error", err)
		}
	}

	e.logger.Info("phrases extracted", "terms", len(terms), "created", created)
	return nil
}
