package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velocity-Developer/newads/internal/domain"
)

func TestExtractDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	e := NewPhraseExtractor(newMemTerms(), newMemPhrases(), newFakeBlacklist(), nil)

	got, err := e.Extract(context.Background(), "Jasa Website murah JASA")
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"Jasa", "Website", "murah"}, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDropsBlacklistedWords(t *testing.T) {
	t.Parallel()

	e := NewPhraseExtractor(newMemTerms(), newMemPhrases(), newFakeBlacklist("MURAH"), nil)

	got, err := e.Extract(context.Background(), "Jasa Website murah")
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"Jasa", "Website"}, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSplitsOnAnyWhitespace(t *testing.T) {
	t.Parallel()

	e := NewPhraseExtractor(newMemTerms(), newMemPhrases(), nil, nil)

	got, err := e.Extract(context.Background(), " toko\tonline \n  murah ")
	require.NoError(t, err)
	assert.Equal(t, []string{"toko", "online", "murah"}, got)
}

func TestPhraseExtractorRunCreatesPhrasesOnce(t *testing.T) {
	t.Parallel()

	terms := newMemTerms()
	phrases := newMemPhrases()
	terms.phrases = phrases

	negative := terms.add("jasa website murah", domain.VerdictNegative, domain.NewCampaignID(7))
	terms.add("jasa website", domain.VerdictRelevant, nil)
	terms.add("website gratis", domain.VerdictNegative, nil)

	e := NewPhraseExtractor(terms, phrases, newFakeBlacklist("murah"), nil)
	require.NoError(t, e.Run(context.Background(), StageOptions{}))

	if diff := cmp.Diff([]string{"jasa", "website", "gratis"}, phrases.texts()); diff != "" {
		t.Errorf("phrase texts mismatch (-want +got):\n%s", diff)
	}

	jasa := phrases.byText("jasa")
	require.NotNil(t, jasa)
	assert.Equal(t, negative.id, jasa.termID)
	require.NotNil(t, jasa.campaign)
	assert.EqualValues(t, 7, *jasa.campaign)

	require.NoError(t, e.Run(context.Background(), StageOptions{}))
	assert.Len(t, phrases.texts(), 3, "terms with phrases are not split again")
}

func TestPhraseExtractorSkipsTermOnBlacklistError(t *testing.T) {
	t.Parallel()

	terms := newMemTerms()
	phrases := newMemPhrases()
	terms.phrases = phrases
	terms.add("jasa website", domain.VerdictNegative, nil)

	bl := newFakeBlacklist()
	bl.err = errors.New("db down")

	require.NoError(t, NewPhraseExtractor(terms, phrases, bl, nil).Run(context.Background(), StageOptions{}))
	assert.Empty(t, phrases.texts())
}

func TestPhraseExtractorMovesPastTermsWithoutNewPhrases(t *testing.T) {
	t.Parallel()

	terms := newMemTerms()
	phrases := newMemPhrases()
	terms.phrases = phrases
	terms.add("jasa website", domain.VerdictNegative, nil)
	repeated := terms.add("website jasa", domain.VerdictNegative, nil)
	terms.add("toko online", domain.VerdictNegative, nil)

	e := NewPhraseExtractor(terms, phrases, newFakeBlacklist(), nil)
	for range 5 {
		require.NoError(t, e.Run(context.Background(), StageOptions{BatchSize: 1}))
	}

	if diff := cmp.Diff([]string{"jasa", "website", "toko", "online"}, phrases.texts()); diff != "" {
		t.Errorf("phrase texts mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, repeated.extracted, "a term whose tokens all exist is still marked extracted")

	left, err := terms.ListNegativeWithoutPhrases(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPhraseExtractorMarksFullyBlacklistedTerm(t *testing.T) {
	t.Parallel()

	terms := newMemTerms()
	phrases := newMemPhrases()
	terms.phrases = phrases
	blocked := terms.add("gratis murah", domain.VerdictNegative, nil)
	terms.add("toko online", domain.VerdictNegative, nil)

	e := NewPhraseExtractor(terms, phrases, newFakeBlacklist("gratis", "murah"), nil)
	require.NoError(t, e.Run(context.Background(), StageOptions{BatchSize: 1}))
	require.NoError(t, e.Run(context.Background(), StageOptions{BatchSize: 1}))

	assert.True(t, blocked.extracted)
	assert.Equal(t, []string{"toko", "online"}, phrases.texts())
}

func TestPhraseExtractorRetriesTermAfterBlacklistError(t *testing.T) {
	t.Parallel()

	terms := newMemTerms()
	phrases := newMemPhrases()
	terms.phrases = phrases
	term := terms.add("jasa website", domain.VerdictNegative, nil)

	bl := newFakeBlacklist()
	bl.err = errors.New("db down")
	e := NewPhraseExtractor(terms, phrases, bl, nil)

	require.NoError(t, e.Run(context.Background(), StageOptions{}))
	assert.False(t, term.extracted)

	bl.err = nil
	require.NoError(t, e.Run(context.Background(), StageOptions{}))
	assert.True(t, term.extracted)
	assert.Equal(t, []string{"jasa", "website"}, phrases.texts())
}
