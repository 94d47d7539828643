package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const termPrompt = `Kamu adalah asisten yang menilai search term Google Ads untuk jasa pembuatan website.
Balas hanya dengan satu kata:
- "relevan" jika search term menunjukkan niat mencari jasa pembuatan website,
- "negatif" jika search term tidak relevan dan sebaiknya dijadikan negative keyword.
Jangan menambahkan penjelasan.`

const phrasePrompt = `Kamu adalah asisten yang menilai satu kata dari search term Google Ads.
Balas hanya dengan satu kata:
- "indonesia" jika kata tersebut adalah kata dalam bahasa Indonesia,
- "asing" jika kata tersebut berasal dari bahasa asing.
Jangan menambahkan penjelasan.`

// Classifier labels a single text with one of two verdicts using a fixed prompt.
type Classifier struct {
	chat     ports.ChatClient
	prompt   string
	labels   [2]domain.Verdict
	patterns [2]*regexp.Regexp
	// fallback is used when the response is ambiguous; nil leaves the item unresolved.
	fallback *domain.Verdict
	logger   *slog.Logger
}

var _ ports.Classifier = (*Classifier)(nil)

// NewTermClassifier labels Terms as relevant or negative. Ambiguous answers default to
// relevant so that nothing is submitted on doubt.
func NewTermClassifier(chat ports.ChatClient, logger *slog.Logger) *Classifier {
	fallback := domain.VerdictRelevant
	return newClassifier(chat, termPrompt, domain.VerdictRelevant, domain.VerdictNegative, &fallback, logger)
}

// NewPhraseClassifier labels Phrases as local-language or foreign. Ambiguous answers
// stay unresolved.
func NewPhraseClassifier(chat ports.ChatClient, logger *slog.Logger) *Classifier {
	return newClassifier(chat, phrasePrompt, domain.VerdictLocal, domain.VerdictForeign, nil, logger)
}

func newClassifier(chat ports.ChatClient, prompt string, a, b domain.Verdict, fallback *domain.Verdict, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		chat:     chat,
		prompt:   prompt,
		labels:   [2]domain.Verdict{a, b},
		patterns: [2]*regexp.Regexp{wordPattern(a), wordPattern(b)},
		fallback: fallback,
		logger:   logger,
	}
}

func wordPattern(v domain.Verdict) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(string(v)) + `(?:$|[^\p{L}\p{N}_])`)
}

// Classify asks the model for a verdict. Transport errors are returned to the caller.
func (c *Classifier) Classify(ctx context.Context, text string) (*domain.Verdict, error) {
	answer, err := c.chat.Complete(ctx, c.prompt, text)
	if err != nil {
		return nil, fmt.Errorf("classify %q: %w", text, err)
	}

	if verdict, ok := c.parse(answer); ok {
		return &verdict, nil
	}

	if c.fallback != nil {
		c.logger.Warn("ambiguous classification, using default", "text", text, "answer", answer, "default", *c.fallback)
		v := *c.fallback
		return &v, nil
	}
	c.logger.Warn("ambiguous classification, left unresolved", "text", text, "answer", answer)
	return nil, nil
}

// parse accepts an exact label or else the earliest whole-word label in the answer.
func (c *Classifier) parse(answer string) (domain.Verdict, bool) {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, ".!\"'` ")
	for _, label := range c.labels {
		if normalized == string(label) {
			return label, true
		}
	}

	best := -1
	var found domain.Verdict
	for i, pattern := range c.patterns {
		loc := pattern.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			found = c.labels[i]
		}
	}
	return found, best >= 0
}
