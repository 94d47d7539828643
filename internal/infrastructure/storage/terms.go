package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

const termColumns = "id, text, verdict, submission_status, retry_count, notification_status, campaign_id, created_at"

// TermRepository persists Terms in Postgres.
type TermRepository struct {
	submissionTable
	db *sql.DB
}

var _ ports.TermRepository = (*TermRepository)(nil)

// NewTermRepository wires a sql.DB implementation.
func NewTermRepository(db *sql.DB) *TermRepository {
	return &TermRepository{
		submissionTable: submissionTable{db: db, table: "terms", eligible: domain.VerdictNegative},
		db:              db,
	}
}

// InsertNew stores candidates whose text is not yet present and reports how many rows were added.
func (r *TermRepository) InsertNew(ctx context.Context, candidates []domain.TermCandidate) (int, error) {
	var inserted int
	for start := 0; start < len(candidates); start += insertChunkSize {
		end := min(start+insertChunkSize, len(candidates))
		query, args, err := insertTermsQuery(candidates[start:end]).ToSql()
		if err != nil {
			return inserted, fmt.Errorf("build term insert: %w", err)
		}
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert terms: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// ListUnclassified returns Terms without a verdict, fewest classify attempts first.
func (r *TermRepository) ListUnclassified(ctx context.Context, limit int) ([]domain.Term, error) {
	return r.list(ctx, unclassified(psql.Select(termColumns).From("terms"), limit))
}

// SetVerdict writes the verdict unless the Term was classified already.
func (r *TermRepository) SetVerdict(ctx context.Context, id int64, verdict domain.Verdict) (bool, error) {
	return setVerdict(ctx, r.db, "terms", id, verdict)
}

// RecordClassifyAttempt counts an unresolved or failed classification of the Term.
func (r *TermRepository) RecordClassifyAttempt(ctx context.Context, id int64) error {
	return recordClassifyAttempt(ctx, r.db, "terms", id)
}

// ListNegativeWithoutPhrases returns negative Terms that were never split and own no Phrases.
func (r *TermRepository) ListNegativeWithoutPhrases(ctx context.Context, limit int) ([]domain.Term, error) {
	return r.list(ctx, negativeWithoutPhrasesQuery(limit))
}

// MarkPhrasesExtracted stamps the Term as split so it is not selected again.
func (r *TermRepository) MarkPhrasesExtracted(ctx context.Context, id int64) error {
	query, args, err := markPhrasesExtractedQuery(id).ToSql()
	if err != nil {
		return fmt.Errorf("build extracted update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark term %d extracted: %w", id, err)
	}
	return nil
}

func (r *TermRepository) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Term, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build term query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	var terms []domain.Term
	for rows.Next() {
		var (
			t                             domain.Term
			verdict, status, notification sql.NullString
			campaign                      sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Text, &verdict, &status, &t.Retries, &notification, &campaign, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		t.Verdict = domain.Verdict(nullableString(verdict))
		t.Status = domain.SubmissionStatus(nullableString(status))
		t.NotificationStatus = domain.NotificationStatus(nullableString(notification))
		t.CampaignID = campaignPtr(campaign)
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return terms, nil
}

func insertTermsQuery(candidates []domain.TermCandidate) sq.InsertBuilder {
	b := psql.Insert("terms").Columns("text", "campaign_id")
	for _, c := range candidates {
		b = b.Values(c.Text, campaignValue(c.CampaignID))
	}
	return b.Suffix("ON CONFLICT (text) DO NOTHING")
}

func negativeWithoutPhrasesQuery(limit int) sq.SelectBuilder {
	return withLimit(
		psql.Select(termColumns).
			From("terms t").
			Where(sq.Eq{"t.verdict": string(domain.VerdictNegative), "t.phrases_extracted_at": nil}).
			Where("NOT EXISTS (SELECT 1 FROM phrases p WHERE p.term_id = t.id)").
			OrderBy("t.id"),
		limit,
	)
}

func markPhrasesExtractedQuery(id int64) sq.UpdateBuilder {
	return psql.Update("terms").
		Set("phrases_extracted_at", sq.Expr("NOW()")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
}
