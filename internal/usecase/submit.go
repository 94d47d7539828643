package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const (
	maxNotificationSamples = 50
	notifyTimeout          = 10 * time.Second
)

// SubmitterDeps wires the collaborators of a KeywordSubmission.
type SubmitterDeps struct {
	Store     ports.SubmissionStore
	Client    ports.KeywordSubmitter
	Notifier  ports.Notifier
	Metrics   ports.Metrics
	Logger    *slog.Logger
	MatchType domain.MatchType
	// Label names the item kind in logs and notifications ("terms", "phrases").
	Label string
}

// KeywordSubmission sends eligible items to the ads platform grouped by campaign and
// applies the retry-bounded status transitions. Terms and Phrases share this routine.
type KeywordSubmission struct {
	store    ports.SubmissionStore
	client   ports.KeywordSubmitter
	notifier ports.Notifier
	metrics  ports.Metrics
	logger   *slog.Logger
	match    domain.MatchType
	label    string
}

// NewKeywordSubmission constructs the submission stage.
func NewKeywordSubmission(deps SubmitterDeps) *KeywordSubmission {
	label := deps.Label
	if label == "" {
		label = "keywords"
	}
	return &KeywordSubmission{
		store:    deps.Store,
		client:   deps.Client,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   orDiscard(deps.Logger),
		match:    deps.MatchType,
		label:    label,
	}
}

// Run executes a submit stage: one request per campaign group. A failed group never
// prevents the remaining groups from being sent.
func (s *KeywordSubmission) Run(ctx context.Context, opts StageOptions) error {
	mode := opts.Mode
	if mode == "" {
		mode = domain.ModeValidate
	}

	items, err := s.store.ListPendingSubmission(ctx, opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending %s: %w", s.label, err)
	}
	if len(items) == 0 {
		s.logger.Info("nothing to submit", "kind", s.label)
		return nil
	}

	var failedGroups int
	for _, group := range domain.GroupByCampaign(items) {
		if err := s.submitGroup(ctx, group, mode); err != nil {
			failedGroups++
			s.logger.Error("submit group",
				"kind", s.label,
				"campaign", domain.CampaignKey(group.CampaignID),
				"error", err,
			)
		}
	}

	if failedGroups > 0 {
		return fmt.Errorf("%d of %s campaign groups could not be recorded", failedGroups, s.label)
	}
	return nil
}

func (s *KeywordSubmission) submitGroup(ctx context.Context, group domain.CampaignGroup, mode domain.Mode) error {
	ids := make([]int64, len(group.Items))
	texts := make([]string, len(group.Items))
	for i, item := range group.Items {
		ids[i] = item.ID
		texts[i] = item.Text
	}

	result, err := s.client.Submit(ctx, texts, s.match, mode, group.CampaignID)
	if err != nil {
		result = domain.SubmissionResult{Success: false, HTTPStatus: result.HTTPStatus, Error: err.Error()}
	}

	if s.metrics != nil {
		s.metrics.ObserveSubmission(s.match, mode, result.Success, len(texts))
	}

	s.logger.Info("negative keywords submitted",
		"kind", s.label,
		"mode", mode,
		"campaign", domain.CampaignKey(group.CampaignID),
		"items", len(texts),
		"success", result.Success,
		"http_status", result.HTTPStatus,
	)

	// Validate runs are dry-runs and leave item state untouched.
	if mode == domain.ModeExecute {
		var stateErr error
		if result.Success {
			stateErr = s.store.MarkSubmitted(ctx, ids)
		} else {
			stateErr = s.store.RecordFailure(ctx, group.Items)
		}
		if stateErr != nil {
			return fmt.Errorf("update submission status: %w", stateErr)
		}
	}

	// Validate runs only report failures.
	if mode == domain.ModeValidate && result.Success {
		return nil
	}
	if s.notify(ctx, buildSubmissionMessage(s.label, s.match, mode, group, result)) && mode == domain.ModeExecute && result.Success {
		if err := s.store.MarkNotified(ctx, ids); err != nil {
			s.logger.Warn("mark notified", "kind", s.label, "error", err)
		}
	}
	return nil
}

// notify is best effort; errors are logged and never propagate.
func (s *KeywordSubmission) notify(ctx context.Context, message string) bool {
	if s.notifier == nil {
		return false
	}
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, message); err != nil {
		s.logger.Warn("notification failed", "kind", s.label, "error", err)
		return false
	}
	return true
}

func buildSubmissionMessage(label string, match domain.MatchType, mode domain.Mode, group domain.CampaignGroup, result domain.SubmissionResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✅ <b>Negative %s submitted</b>\n", html.EscapeString(label))
	} else {
		fmt.Fprintf(&b, "❌ <b>Negative %s submission failed</b>\n", html.EscapeString(label))
	}
	fmt.Fprintf(&b, "Mode: <code>%s</code>\n", mode)
	fmt.Fprintf(&b, "Match type: <code>%s</code>\n", match)
	fmt.Fprintf(&b, "Campaign: <code>%s</code>\n", domain.CampaignKey(group.CampaignID))
	fmt.Fprintf(&b, "Items: %d\n", len(group.Items))
	if result.HTTPStatus != 0 {
		fmt.Fprintf(&b, "HTTP status: %d\n", result.HTTPStatus)
	}
	if !result.Success && result.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(result.Error))
	}

	b.WriteString("\n")
	for i, item := range group.Items {
		if i == maxNotificationSamples {
			fmt.Fprintf(&b, "… and %d more\n", len(group.Items)-maxNotificationSamples)
			break
		}
		b.WriteString(html.EscapeString(match.Format(item.Text)))
		b.WriteString("\n")
	}
	return b.String()
}
