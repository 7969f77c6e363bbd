package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// LedgerRepository keeps attendance rows in the attendance table. The
// UNIQUE(name, date) constraint enforces one row per person per day.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new PostgreSQL attendance ledger
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Record inserts a row unless one exists for (name, date). The existing row is
// returned when nothing was inserted.
func (r *LedgerRepository) Record(ctx context.Context, name string, at time.Time) (database.AttendanceRecord, bool, error) {
	rec := database.NewAttendanceRecord(name, at)

	result, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (name, date, time)
		VALUES ($1, $2::date, $3::time)
		ON CONFLICT (name, date) DO NOTHING
	`, rec.Name, rec.Date, rec.Time)
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
	err = r.pool.QueryRow(ctx, `
		SELECT name, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS')
		FROM attendance
		WHERE name = $1 AND date = $2::date
	`, rec.Name, rec.Date).Scan(&existing.Name, &existing.Date, &existing.Time)
	if err != nil {
		return rec, false, fmt.Errorf("query existing attendance: %w", err)
	}
	return existing, false, nil
}

// List returns rows in insertion order. The person filter is applied after
// normalization, so it runs in Go rather than SQL.
func (r *LedgerRepository) List(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error) {
	query := `
		SELECT name, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS')
		FROM attendance
	`
	var args []any
	var conditions []string
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("date = $%d::date", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows, filter.Person)
}

// Close is a no-op; the pool is owned by the caller.
func (r *LedgerRepository) Close() error {
	return nil
}

func scanAttendance(rows *sql.Rows, person string) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		if person != "" && !facematch.SamePerson(rec.Name, person) {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
