package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

type memItem struct {
	id           int64
	termID       int64
	text         string
	verdict      domain.Verdict
	status       domain.SubmissionStatus
	retries      int
	notification domain.NotificationStatus
	campaign     domain.CampaignID
	attempts     int
	extracted    bool
}

// memStore mirrors the SQL submission state machine in memory.
type memStore struct {
	mu       sync.Mutex
	eligible domain.Verdict
	items    []*memItem
	nextID   int64
}

func (s *memStore) add(text string, verdict domain.Verdict, campaign domain.CampaignID) *memItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item := &memItem{id: s.nextID, text: text, verdict: verdict, campaign: campaign}
	s.items = append(s.items, item)
	return item
}

func (s *memStore) get(id int64) *memItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.id == id {
			return item
		}
	}
	return nil
}

func (s *memStore) byText(text string) *memItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.text == text {
			return item
		}
	}
	return nil
}

func (s *memStore) ListPendingSubmission(_ context.Context, limit int) ([]domain.SubmissionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SubmissionItem
	for _, item := range s.items {
		if item.verdict != s.eligible || item.retries >= domain.MaxSubmissionRetries {
			continue
		}
		if item.status != domain.StatusUnset && item.status != domain.StatusFailed {
			continue
		}
		out = append(out, domain.SubmissionItem{ID: item.id, Text: item.text, CampaignID: item.campaign, Retries: item.retries})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) MarkSubmitted(_ context.Context, ids []int64) error {
	s.update(ids, func(item *memItem) {
		if item.retries < domain.MaxSubmissionRetries {
			item.status = domain.StatusSubmitted
			item.notification = domain.NotificationPending
		}
	})
	return nil
}

func (s *memStore) RecordFailure(_ context.Context, items []domain.SubmissionItem) error {
	listed := make(map[int64]int, len(items))
	ids := make([]int64, len(items))
	for i, it := range items {
		listed[it.ID] = it.Retries
		ids[i] = it.ID
	}
	s.update(ids, func(item *memItem) {
		if item.retries == listed[item.id] && item.retries < domain.MaxSubmissionRetries {
			item.retries, item.status = domain.NextFailureState(listed[item.id])
		}
	})
	return nil
}

func (s *memStore) MarkNotified(_ context.Context, ids []int64) error {
	s.update(ids, func(item *memItem) { item.notification = domain.NotificationSent })
	return nil
}

func (s *memStore) update(ids []int64, fn func(*memItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if slices.Contains(ids, item.id) {
			fn(item)
		}
	}
}

func (s *memStore) recordAttempt(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.id == id {
			if item.verdict == "" && item.attempts < domain.MaxClassifyAttempts {
				item.attempts++
			}
			return nil
		}
	}
	return errors.New("not found")
}

// unclassified mirrors the SQL selection: unlabeled items under the attempt bound,
// ordered by attempts then id.
func (s *memStore) unclassified(limit int) []*memItem {
	s.mu.Lock()
	var out []*memItem
	for _, item := range s.items {
		if item.verdict == "" && item.attempts < domain.MaxClassifyAttempts {
			out = append(out, item)
		}
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b *memItem) int {
		if a.attempts != b.attempts {
			return a.attempts - b.attempts
		}
		return int(a.id - b.id)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) setVerdict(id int64, verdict domain.Verdict) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.id == id {
			if item.verdict != "" {
				return false, nil
			}
			item.verdict = verdict
			return true, nil
		}
	}
	return false, errors.New("not found")
}

type memTerms struct {
	*memStore
	phrases *memPhrases
}

var _ ports.TermRepository = (*memTerms)(nil)

func newMemTerms() *memTerms {
	return &memTerms{memStore: &memStore{eligible: domain.VerdictNegative}}
}

func (r *memTerms) InsertNew(_ context.Context, candidates []domain.TermCandidate) (int, error) {
	var n int
	for _, c := range candidates {
		if r.byText(c.Text) != nil {
			continue
		}
		r.add(c.Text, "", c.CampaignID)
		n++
	}
	return n, nil
}

func (r *memTerms) ListUnclassified(_ context.Context, limit int) ([]domain.Term, error) {
	return toTerms(r.unclassified(limit), 0, func(*memItem) bool { return true }), nil
}

func (r *memTerms) SetVerdict(_ context.Context, id int64, verdict domain.Verdict) (bool, error) {
	return r.setVerdict(id, verdict)
}

func (r *memTerms) RecordClassifyAttempt(_ context.Context, id int64) error {
	return r.recordAttempt(id)
}

func (r *memTerms) ListNegativeWithoutPhrases(_ context.Context, limit int) ([]domain.Term, error) {
	r.mu.Lock()
	items := slices.Clone(r.items)
	r.mu.Unlock()

	return toTerms(items, limit, func(item *memItem) bool {
		return item.verdict == domain.VerdictNegative && !item.extracted &&
			(r.phrases == nil || !r.phrases.hasTerm(item.id))
	}), nil
}

func (r *memTerms) MarkPhrasesExtracted(_ context.Context, id int64) error {
	r.update([]int64{id}, func(item *memItem) { item.extracted = true })
	return nil
}

func toTerms(items []*memItem, limit int, keep func(*memItem) bool) []domain.Term {
	var out []domain.Term
	for _, item := range items {
		if !keep(item) {
			continue
		}
		out = append(out, domain.Term{
			ID:                 item.id,
			Text:               item.text,
			Verdict:            item.verdict,
			Status:             item.status,
			Retries:            item.retries,
			NotificationStatus: item.notification,
			CampaignID:         item.campaign,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type memPhrases struct {
	*memStore
}

var _ ports.PhraseRepository = (*memPhrases)(nil)

func newMemPhrases() *memPhrases {
	return &memPhrases{memStore: &memStore{eligible: domain.VerdictLocal}}
}

func (r *memPhrases) InsertForTerm(_ context.Context, term domain.Term, texts []string) (int, error) {
	var n int
	for _, text := range texts {
		if r.byText(text) != nil {
			continue
		}
		item := r.add(text, "", term.CampaignID)
		item.termID = term.ID
		n++
	}
	return n, nil
}

func (r *memPhrases) ListUnclassified(_ context.Context, limit int) ([]domain.Phrase, error) {
	var out []domain.Phrase
	for _, item := range r.unclassified(limit) {
		out = append(out, domain.Phrase{ID: item.id, TermID: item.termID, Text: item.text, CampaignID: item.campaign})
	}
	return out, nil
}

func (r *memPhrases) SetVerdict(_ context.Context, id int64, verdict domain.Verdict) (bool, error) {
	return r.setVerdict(id, verdict)
}

func (r *memPhrases) RecordClassifyAttempt(_ context.Context, id int64) error {
	return r.recordAttempt(id)
}

func (r *memPhrases) hasTerm(termID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.termID == termID {
			return true
		}
	}
	return false
}

func (r *memPhrases) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	for i, item := range r.items {
		out[i] = item.text
	}
	return out
}

type fakeSource struct {
	candidates []domain.TermCandidate
	err        error
}

func (f *fakeSource) FetchZeroClick(context.Context, int) ([]domain.TermCandidate, error) {
	return slices.Clone(f.candidates), f.err
}

type fakeBlacklist struct {
	words map[string]bool
	err   error
}

func newFakeBlacklist(words ...string) *fakeBlacklist {
	bl := &fakeBlacklist{words: map[string]bool{}}
	for _, w := range words {
		bl.words[strings.ToLower(w)] = true
	}
	return bl
}

func (f *fakeBlacklist) Contains(_ context.Context, word string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.words[strings.ToLower(word)], nil
}

func (f *fakeBlacklist) Invalidate() {}

// fakeClassifier answers from a table; unknown texts return an error.
type fakeClassifier struct {
	verdicts map[string]*domain.Verdict
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (*domain.Verdict, error) {
	v, ok := f.verdicts[text]
	if !ok {
		return nil, errors.New("classifier unavailable")
	}
	return v, nil
}

func verdictPtr(v domain.Verdict) *domain.Verdict { return &v }

type submitCall struct {
	Texts      []string
	Match      domain.MatchType
	Mode       domain.Mode
	CampaignID domain.CampaignID
}

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []submitCall
	result func(call submitCall) (domain.SubmissionResult, error)
}

func (f *fakeSubmitter) Submit(_ context.Context, texts []string, match domain.MatchType, mode domain.Mode, campaignID domain.CampaignID) (domain.SubmissionResult, error) {
	call := submitCall{Texts: slices.Clone(texts), Match: match, Mode: mode, CampaignID: campaignID}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.result == nil {
		return domain.SubmissionResult{Success: true, HTTPStatus: 200}, nil
	}
	return f.result(call)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, html)
	return f.err
}

type fakeMetrics struct {
	mu              sync.Mutex
	steps           map[string]bool
	submissions     int
	classifications []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{steps: map[string]bool{}}
}

func (f *fakeMetrics) ObserveStep(step string, success bool, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[step] = success
}

func (f *fakeMetrics) ObserveSubmission(domain.MatchType, domain.Mode, bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions++
}

func (f *fakeMetrics) ObserveClassification(kind, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications = append(f.classifications, kind+":"+outcome)
}

type fakePublisher struct {
	runs []domain.PipelineRun
	err  error
}

func (f *fakePublisher) PublishRun(_ context.Context, run domain.PipelineRun) error {
	f.runs = append(f.runs, run)
	return f.err
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[name] {
		return nil, false, nil
	}
	f.held[name] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, name)
	}, true, nil
}
