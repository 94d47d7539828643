package domain

import "time"

// Phrase is a single token extracted from a negative Term.
type Phrase struct {
	ID                 int64
	TermID             int64
	Text               string
	Verdict            Verdict
	Status             SubmissionStatus
	Retries            int
	NotificationStatus NotificationStatus
	CampaignID         CampaignID
	CreatedAt          time.Time
}

// BlacklistEntry is a word that may never become a Phrase.
type BlacklistEntry struct {
	ID     int64
	Word   string
	Active bool
	Notes  string
}
