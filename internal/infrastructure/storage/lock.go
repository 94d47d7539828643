package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Velocity-Developer/newads/internal/ports"
)

// AdvisoryLocker serializes commands across processes with Postgres session advisory locks.
type AdvisoryLocker struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.Locker = (*AdvisoryLocker)(nil)

// NewAdvisoryLocker wires a sql.DB implementation.
func NewAdvisoryLocker(db *sql.DB, logger *slog.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AdvisoryLocker{db: db, logger: logger}
}

// TryLock takes the lock keyed by name without waiting. The lock lives on a dedicated
// connection until unlock is called.
func (l *AdvisoryLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reserve connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, name); err != nil {
			l.logger.Warn("release advisory lock", "lock", name, "error", err)
		}
		_ = conn.Close()
	}
	return unlock, true, nil
}
