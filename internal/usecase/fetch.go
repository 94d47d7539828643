package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// TermFetcher pulls zero-click terms from the reporting API and stores new ones.
type TermFetcher struct {
	source ports.TermSource
	terms  ports.TermRepository
	logger *slog.Logger
}

// NewTermFetcher wires the source and repository.
func NewTermFetcher(source ports.TermSource, terms ports.TermRepository, logger *slog.Logger) *TermFetcher {
	return &TermFetcher{source: source, terms: terms, logger: orDiscard(logger)}
}

// Fetch returns valid candidates, truncated to limit when limit > 0.
func (f *TermFetcher) Fetch(ctx context.Context, limit int) ([]domain.TermCandidate, error) {
	raw, err := f.source.FetchZeroClick(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch zero-click terms: %w", err)
	}

	valid := make([]domain.TermCandidate, 0, len(raw))
	for _, c := range raw {
		if !IsValidSearchTerm(c.Text) {
			f.logger.Debug("skip invalid term", "term", c.Text)
			continue
		}
		c.Text = strings.TrimSpace(c.Text)
		valid = append(valid, c)
		if limit > 0 && len(valid) >= limit {
			break
		}
	}
	return valid, nil
}

// Store inserts candidates whose text is new. Duplicates are skipped silently.
func (f *TermFetcher) Store(ctx context.Context, candidates []domain.TermCandidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	seen := make(map[string]struct{}, len(candidates))
	unique := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		unique = append(unique, c)
	}

	stored, err := f.terms.InsertNew(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("store terms: %w", err)
	}
	return stored, nil
}

// Run executes the fetch-terms stage.
func (f *TermFetcher) Run(ctx context.Context, opts StageOptions) error {
	candidates, err := f.Fetch(ctx, opts.BatchSize)
	if err != nil {
		return err
	}
	stored, err := f.Store(ctx, candidates)
	if err != nil {
		return err
	}
	f.logger.Info("zero-click terms fetched", "candidates", len(candidates), "stored", stored)
	return nil
}
