package domain

import (
	"strconv"
	"time"
)

// MaxTermLength bounds the stored text of a Term.
const MaxTermLength = 500

// MaxClassifyAttempts is the number of unresolved classifications after which a Term
// or Phrase is no longer selected for analysis.
const MaxClassifyAttempts = 3

// Verdict is the classification result of a Term or Phrase. Empty means unset.
type Verdict string

const (
	// VerdictRelevant marks a Term that matches the advertised service.
	VerdictRelevant Verdict = "relevan"
	// VerdictNegative marks a Term that is not relevant and should become a negative keyword.
	VerdictNegative Verdict = "negatif"

	// VerdictLocal marks a Phrase written in the local language.
	VerdictLocal Verdict = "indonesia"
	// VerdictForeign marks a Phrase written in a foreign language.
	VerdictForeign Verdict = "asing"
)

// SubmissionStatus tracks the negative-keyword submission state of an item.
type SubmissionStatus string

const (
	StatusUnset             SubmissionStatus = ""
	StatusSubmitted         SubmissionStatus = "sukses"
	StatusFailed            SubmissionStatus = "gagal"
	StatusPermanentlyFailed SubmissionStatus = "gagal_permanen"
)

// NotificationStatus tracks whether the operator was told about a submission.
type NotificationStatus string

const (
	NotificationUnset   NotificationStatus = ""
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
)

// CampaignID is an optional ad campaign identifier. A nil pointer means "no campaign";
// zero is a valid campaign distinct from nil.
type CampaignID = *int64

// CampaignKey renders a campaign identifier for logs, metrics and grouping keys.
func CampaignKey(id CampaignID) string {
	if id == nil {
		return "none"
	}
	return strconv.FormatInt(*id, 10)
}

// NewCampaignID returns a pointer to a copy of v.
func NewCampaignID(v int64) CampaignID {
	return &v
}

// Term is a zero-click search query pulled from ad reporting data.
type Term struct {
	ID                 int64
	Text               string
	Verdict            Verdict
	Status             SubmissionStatus
	Retries            int
	NotificationStatus NotificationStatus
	CampaignID         CampaignID
	CreatedAt          time.Time
}

// TermCandidate is a normalized record returned by the zero-click source before storage.
type TermCandidate struct {
	Text       string
	CampaignID CampaignID
}
