package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// StatusCount is the number of items sharing a verdict and submission status.
type StatusCount struct {
	Table   string `json:"table"`
	Verdict string `json:"verdict"`
	Status  string `json:"status"`
	Count   int64  `json:"count"`
}

// Stats counts Terms and Phrases by verdict and submission status.
func Stats(ctx context.Context, db *sql.DB) ([]StatusCount, error) {
	var out []StatusCount
	for _, table := range []string{"terms", "phrases"} {
		query, args, err := psql.
			Select("COALESCE(verdict, 'unset')", "COALESCE(submission_status, 'unset')", "COUNT(*)").
			From(table).
			GroupBy("1", "2").
			OrderBy("1", "2").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build stats query: %w", err)
		}

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query %s stats: %w", table, err)
		}
		for rows.Next() {
			c := StatusCount{Table: table}
			if err := rows.Scan(&c.Verdict, &c.Status, &c.Count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stats: %w", err)
			}
			out = append(out, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
	}
	return out, nil
}
