package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// PhraseRepository persists Phrases in Postgres.
type PhraseRepository struct {
	submissionTable
	db *sql.DB
}

var _ ports.PhraseRepository = (*PhraseRepository)(nil)

// NewPhraseRepository wires a sql.DB implementation. Local-language Phrases are the
// ones eligible for submission.
func NewPhraseRepository(db *sql.DB) *PhraseRepository {
	return &PhraseRepository{
		submissionTable: submissionTable{db: db, table: "phrases", eligible: domain.VerdictLocal},
		db:              db,
	}
}

// InsertForTerm creates Phrases owned by term, inheriting its campaign. Texts that
// already exist as a Phrase of any Term are skipped.
func (r *PhraseRepository) InsertForTerm(ctx context.Context, term domain.Term, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	query, args, err := insertPhrasesQuery(term, texts).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build phrase insert: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert phrases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ListUnclassified returns Phrases without a verdict, fewest classify attempts first.
func (r *PhraseRepository) ListUnclassified(ctx context.Context, limit int) ([]domain.Phrase, error) {
	query, args, err := unclassified(
		psql.Select("id", "term_id", "text", "campaign_id", "retry_count", "created_at").From("phrases"),
		limit,
	).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build phrase query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	defer rows.Close()

	var phrases []domain.Phrase
	for rows.Next() {
		var (
			p        domain.Phrase
			campaign sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.TermID, &p.Text, &campaign, &p.Retries, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		p.CampaignID = campaignPtr(campaign)
		phrases = append(phrases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return phrases, nil
}

// SetVerdict writes the verdict unless the Phrase was classified already.
func (r *PhraseRepository) SetVerdict(ctx context.Context, id int64, verdict domain.Verdict) (bool, error) {
	return setVerdict(ctx, r.db, "phrases", id, verdict)
}

// RecordClassifyAttempt counts an unresolved or failed classification of the Phrase.
func (r *PhraseRepository) RecordClassifyAttempt(ctx context.Context, id int64) error {
	return recordClassifyAttempt(ctx, r.db, "phrases", id)
}

func insertPhrasesQuery(term domain.Term, texts []string) sq.InsertBuilder {
	b := psql.Insert("phrases").Columns("term_id", "text", "campaign_id")
	for _, text := range texts {
		b = b.Values(term.ID, text, campaignValue(term.CampaignID))
	}
	return b.Suffix("ON CONFLICT (text) DO NOTHING")
}
