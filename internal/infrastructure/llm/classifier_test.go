package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velocity-Developer/newads/internal/domain"
)

type stubChat struct {
	answer string
	err    error
	calls  int
}

func (s *stubChat) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func TestTermClassifierParsing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		answer string
		want   domain.Verdict
	}{
		{"relevan", domain.VerdictRelevant},
		{"  NEGATIF\n", domain.VerdictNegative},
		{"negatif.", domain.VerdictNegative},
		{"Jawaban: negatif", domain.VerdictNegative},
		{"negatif, bukan relevan", domain.VerdictNegative},
		{"relevan; tidak negatif", domain.VerdictRelevant},
		{"irrelevant", domain.VerdictRelevant},
		{"saya tidak yakin", domain.VerdictRelevant},
		{"", domain.VerdictRelevant},
	}

	for _, tc := range cases {
		chat := &stubChat{answer: tc.answer}
		got, err := NewTermClassifier(chat, nil).Classify(context.Background(), "jasa website")
		require.NoError(t, err, tc.answer)
		require.NotNil(t, got, tc.answer)
		assert.Equal(t, tc.want, *got, "answer %q", tc.answer)
	}
}

func TestPhraseClassifierFailsClosed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		answer string
		want   *domain.Verdict
	}{
		{"indonesia", verdictPtr(domain.VerdictLocal)},
		{"Asing", verdictPtr(domain.VerdictForeign)},
		{"kata ini asing", verdictPtr(domain.VerdictForeign)},
		{"bahasa indonesia atau asing", verdictPtr(domain.VerdictLocal)},
		{"indonesian", nil},
		{"tidak tahu", nil},
	}

	for _, tc := range cases {
		chat := &stubChat{answer: tc.answer}
		got, err := NewPhraseClassifier(chat, nil).Classify(context.Background(), "murah")
		require.NoError(t, err, tc.answer)
		if tc.want == nil {
			assert.Nil(t, got, "answer %q", tc.answer)
			continue
		}
		require.NotNil(t, got, tc.answer)
		assert.Equal(t, *tc.want, *got, "answer %q", tc.answer)
	}
}

func TestClassifierOutputsOnlyDefinedLabels(t *testing.T) {
	t.Parallel()

	answers := []string{"relevan", "negatif", "indonesia", "asing", "???", "relevan negatif", "ASING indonesia", "lorem"}
	term := map[domain.Verdict]bool{domain.VerdictRelevant: true, domain.VerdictNegative: true}
	phrase := map[domain.Verdict]bool{domain.VerdictLocal: true, domain.VerdictForeign: true}

	for _, answer := range answers {
		got, err := NewTermClassifier(&stubChat{answer: answer}, nil).Classify(context.Background(), "x")
		require.NoError(t, err)
		if got != nil {
			assert.True(t, term[*got], "term verdict %q for %q", *got, answer)
		}

		got, err = NewPhraseClassifier(&stubChat{answer: answer}, nil).Classify(context.Background(), "x")
		require.NoError(t, err)
		if got != nil {
			assert.True(t, phrase[*got], "phrase verdict %q for %q", *got, answer)
		}
	}
}

func TestClassifierPropagatesTransportError(t *testing.T) {
	t.Parallel()

	chat := &stubChat{err: errors.New("timeout")}
	got, err := NewTermClassifier(chat, nil).Classify(context.Background(), "x")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, chat.calls)
}

func verdictPtr(v domain.Verdict) *domain.Verdict { return &v }
