package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Ledger keeps attendance rows in a MariaDB table. The unique key on
// (name, date) enforces one row per person per day.
type Ledger struct {
	pool *Pool
}

// NewLedger returns a ledger on pool. Call Pool.EnsureSchema first.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Record inserts a row unless one exists for (name, date), in which case the
// existing row is returned.
func (l *Ledger) Record(ctx context.Context, name string, at time.Time) (database.AttendanceRecord, bool, error) {
	rec := database.NewAttendanceRecord(name, at)

	result, err := l.pool.db.ExecContext(ctx,
		`INSERT IGNORE INTO attendance (name, date, time) VALUES (?, ?, ?)`,
		rec.Name, rec.Date, rec.Time)
	if err != nil {
		return rec, false, fmt.Errorf("insert attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return rec, false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return rec, true, nil
	}

	var existing database.AttendanceRecord
	err = l.pool.db.QueryRowContext(ctx, `
		SELECT name, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(time, '%H:%i:%s')
		FROM attendance
		WHERE name = ? AND date = ?
	`, rec.Name, rec.Date).Scan(&existing.Name, &existing.Date, &existing.Time)
	if err != nil {
		return rec, false, fmt.Errorf("query existing attendance: %w", err)
	}
	return existing, false, nil
}

// List returns rows in insertion order.
func (l *Ledger) List(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error) {
	query := `
		SELECT name, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(time, '%H:%i:%s')
		FROM attendance
	`
	var args []any
	if filter.Date != "" {
		query += " WHERE date = ?"
		args = append(args, filter.Date)
	}
	query += " ORDER BY id"

	rows, err := l.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if filter.Person != "" && !facematch.SamePerson(rec.Name, filter.Person) {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close is a no-op; the pool is owned by the caller.
func (l *Ledger) Close() error {
	return nil
}
