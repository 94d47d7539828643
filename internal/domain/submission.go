package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSubmissionRetries is the number of failed submissions after which an item is
// permanently failed.
const MaxSubmissionRetries = 3

var (
	// ErrMissingConfig reports a required setting that is absent.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrUnexpectedResponse reports an upstream payload the pipeline cannot interpret.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// MatchType is the keyword match type used on the ads platform.
type MatchType string

const (
	MatchExact  MatchType = "EXACT"
	MatchPhrase MatchType = "PHRASE"
)

// Format renders a keyword the way the ads platform displays the match type.
func (m MatchType) Format(text string) string {
	if m == MatchPhrase {
		return `"` + text + `"`
	}
	return "[" + text + "]"
}

// Mode selects between a dry-run and a committing submission.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModeExecute  Mode = "execute"
)

// ParseMode validates a mode string. Empty input means validate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeValidate:
		return ModeValidate, nil
	case ModeExecute:
		return ModeExecute, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want validate or execute)", s)
	}
}

// SubmissionItem is the part of a Term or Phrase the submitter needs.
type SubmissionItem struct {
	ID         int64
	Text       string
	CampaignID CampaignID
	Retries    int
}

// SubmissionResult is the logical outcome of one batched submission request.
type SubmissionResult struct {
	Success    bool
	HTTPStatus int
	Body       string
	Error      string
}

// NextFailureState applies one failed submission to an item with the given retry count.
// Items already at the bound stay permanently failed and are not incremented again.
func NextFailureState(retries int) (int, SubmissionStatus) {
	if retries >= MaxSubmissionRetries {
		return MaxSubmissionRetries, StatusPermanentlyFailed
	}
	retries++
	if retries >= MaxSubmissionRetries {
		return retries, StatusPermanentlyFailed
	}
	return retries, StatusFailed
}

// CampaignGroup holds the items of one campaign in first-seen order.
type CampaignGroup struct {
	CampaignID CampaignID
	Items      []SubmissionItem
}

// GroupByCampaign partitions items by campaign identifier, keeping the order in which
// each campaign first appears. Items without a campaign form their own group.
func GroupByCampaign(items []SubmissionItem) []CampaignGroup {
	index := make(map[string]int)
	var groups []CampaignGroup
	for _, item := range items {
		key := CampaignKey(item.CampaignID)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, CampaignGroup{CampaignID: item.CampaignID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
