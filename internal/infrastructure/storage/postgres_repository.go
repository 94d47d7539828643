package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// insertChunkSize bounds the rows of one multi-row INSERT.
const insertChunkSize = 500

// submissionTable implements the submission state machine for a table with the
// shared (verdict, submission_status, retry_count, notification_status) columns.
type submissionTable struct {
	db       *sql.DB
	table    string
	eligible domain.Verdict
}

var _ ports.SubmissionStore = submissionTable{}

// ListPendingSubmission returns eligible items that were never submitted or may be retried.
func (t submissionTable) ListPendingSubmission(ctx context.Context, limit int) ([]domain.SubmissionItem, error) {
	query, args, err := pendingSubmissionQuery(t.table, t.eligible, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending %s: %w", t.table, err)
	}
	defer rows.Close()

	var items []domain.SubmissionItem
	for rows.Next() {
		var (
			item     domain.SubmissionItem
			campaign sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.Text, &campaign, &item.Retries); err != nil {
			return nil, fmt.Errorf("scan pending %s: %w", t.table, err)
		}
		item.CampaignID = campaignPtr(campaign)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

// MarkSubmitted moves items to the submitted state with a pending notification.
func (t submissionTable) MarkSubmitted(ctx context.Context, ids []int64) error {
	return t.exec(ctx, markSubmittedQuery(t.table, ids), ids)
}

// RecordFailure applies one failed attempt per item in a single statement. The next
// retry count and status come from domain.NextFailureState; a row is only updated while
// its retry count still equals the one the item was listed with.
func (t submissionTable) RecordFailure(ctx context.Context, items []domain.SubmissionItem) error {
	if len(items) == 0 {
		return nil
	}
	query, args, err := recordFailureQuery(t.table, items)
	if err != nil {
		return fmt.Errorf("build failure update: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", t.table, err)
	}
	return nil
}

// MarkNotified records that the operator received the submission notification.
func (t submissionTable) MarkNotified(ctx context.Context, ids []int64) error {
	return t.exec(ctx, markNotifiedQuery(t.table, ids), ids)
}

func (t submissionTable) exec(ctx context.Context, b sq.UpdateBuilder, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", t.table, err)
	}
	return nil
}

// setVerdict writes a verdict only when none is set yet.
func setVerdict(ctx context.Context, db *sql.DB, table string, id int64, verdict domain.Verdict) (bool, error) {
	query, args, err := setVerdictQuery(table, id, verdict).ToSql()
	if err != nil {
		return false, fmt.Errorf("build verdict update: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s verdict: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func pendingSubmissionQuery(table string, eligible domain.Verdict, limit int) sq.SelectBuilder {
	b := psql.Select("id", "text", "campaign_id", "retry_count").
		From(table).
		Where(sq.Eq{"verdict": string(eligible)}).
		Where(sq.Or{
			sq.Eq{"submission_status": nil},
			sq.Eq{"submission_status": string(domain.StatusFailed)},
		}).
		Where(sq.Lt{"retry_count": domain.MaxSubmissionRetries}).
		OrderBy("id")
	return withLimit(b, limit)
}

func markSubmittedQuery(table string, ids []int64) sq.UpdateBuilder {
	return psql.Update(table).
		Set("submission_status", string(domain.StatusSubmitted)).
		Set("notification_status", string(domain.NotificationPending)).
		Set("updated_at", sq.Expr("NOW()")).
		Where("id = ANY(?)", pq.Array(ids)).
		Where(sq.Lt{"retry_count": domain.MaxSubmissionRetries})
}

func recordFailureQuery(table string, items []domain.SubmissionItem) (string, []any, error) {
	rows := make([]string, len(items))
	args := make([]any, 0, 4*len(items)+1)
	for i, item := range items {
		retries, status := domain.NextFailureState(item.Retries)
		rows[i] = "(?::bigint, ?::int, ?::int, ?::text)"
		args = append(args, item.ID, item.Retries, retries, string(status))
	}
	args = append(args, domain.MaxSubmissionRetries)

	query := "UPDATE " + table + " AS t" +
		" SET retry_count = v.next_retries, submission_status = v.next_status, updated_at = NOW()" +
		" FROM (VALUES " + strings.Join(rows, ", ") + ") AS v(id, prev_retries, next_retries, next_status)" +
		" WHERE t.id = v.id AND t.retry_count = v.prev_retries AND t.retry_count < ?"
	query, err := sq.Dollar.ReplacePlaceholders(query)
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}

// recordClassifyAttempt counts one classification of an item that is still unlabeled.
func recordClassifyAttempt(ctx context.Context, db *sql.DB, table string, id int64) error {
	query, args, err := classifyAttemptQuery(table, id).ToSql()
	if err != nil {
		return fmt.Errorf("build attempt update: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s attempts: %w", table, err)
	}
	return nil
}

// unclassified selects unlabeled rows that have not used up their classify attempts.
// Rows that failed before sort behind fresh ones so they cannot hold the batch window.
func unclassified(b sq.SelectBuilder, limit int) sq.SelectBuilder {
	return withLimit(
		b.Where(sq.Eq{"verdict": nil}).
			Where(sq.Lt{"classify_attempts": domain.MaxClassifyAttempts}).
			OrderBy("classify_attempts", "id"),
		limit,
	)
}

func classifyAttemptQuery(table string, id int64) sq.UpdateBuilder {
	return psql.Update(table).
		Set("classify_attempts", sq.Expr("classify_attempts + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "verdict": nil}).
		Where(sq.Lt{"classify_attempts": domain.MaxClassifyAttempts})
}

func markNotifiedQuery(table string, ids []int64) sq.UpdateBuilder {
	return psql.Update(table).
		Set("notification_status", string(domain.NotificationSent)).
		Set("updated_at", sq.Expr("NOW()")).
		Where("id = ANY(?)", pq.Array(ids))
}

func setVerdictQuery(table string, id int64, verdict domain.Verdict) sq.UpdateBuilder {
	return psql.Update(table).
		Set("verdict", string(verdict)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "verdict": nil})
}

func withLimit(b sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		return b.Limit(uint64(limit))
	}
	return b
}

func campaignPtr(v sql.NullInt64) domain.CampaignID {
	if !v.Valid {
		return nil
	}
	return domain.NewCampaignID(v.Int64)
}

func campaignValue(id domain.CampaignID) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
