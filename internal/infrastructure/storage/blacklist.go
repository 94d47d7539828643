package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// BlacklistRepository reads blacklist words maintained by the admin dashboard.
type BlacklistRepository struct {
	db *sql.DB
}

var _ ports.BlacklistRepository = (*BlacklistRepository)(nil)

// NewBlacklistRepository wires a sql.DB implementation.
func NewBlacklistRepository(db *sql.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// ListActive returns every active entry with its word lowercased and trimmed.
func (r *BlacklistRepository) ListActive(ctx context.Context) ([]domain.BlacklistEntry, error) {
	query, args, err := activeEntriesQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blacklist query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer rows.Close()

	var entries []domain.BlacklistEntry
	for rows.Next() {
		var (
			e     domain.BlacklistEntry
			notes sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Word, &e.Active, &notes); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		e.Notes = nullableString(notes)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func activeEntriesQuery() sq.SelectBuilder {
	return psql.Select("id", "LOWER(TRIM(word))", "active", "notes").
		From("blacklist_words").
		Where(sq.Eq{"active": true}).
		OrderBy("id")
}
