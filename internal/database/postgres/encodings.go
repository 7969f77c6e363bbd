package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EncodingRepository stores the encoding database in the encodings table,
// one row per embedding. The latest training_runs row carries the metadata;
// without one the repository is untrained.
type EncodingRepository struct {
	pool *Pool
}

// NewEncodingRepository creates a new PostgreSQL encoding repository
func NewEncodingRepository(pool *Pool) *EncodingRepository {
	return &EncodingRepository{pool: pool}
}

// Save truncates the encodings table and inserts db in a single transaction.
func (r *EncodingRepository) Save(ctx context.Context, db *database.EncodingDatabase) error {
	if db == nil {
		return errors.New("encoding database is nil")
	}
	if len(db.Encodings) != len(db.Names) {
		return fmt.Errorf("encodings and names differ in length: %d != %d", len(db.Encodings), len(db.Names))
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE encodings`); err != nil {
		return fmt.Errorf("truncate encodings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO encodings (position, name, source, embedding)
		VALUES ($1, $2, $3, $4::vector)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, emb := range db.Encodings {
		source := ""
		if i < len(db.Sources) {
			source = db.Sources[i]
		}
		if _, err := stmt.ExecContext(ctx, i, db.Names[i], source, pgvector.NewVector(emb)); err != nil {
			return fmt.Errorf("insert encoding %d (%s): %w", i, db.Names[i], err)
		}
	}

	trainedAt := db.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO training_runs (id, model, dim, entries, trained_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), db.Model, db.Dim, db.Len(), trainedAt)
	if err != nil {
		return fmt.Errorf("record training run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load returns the encodings in stored order, or database.ErrNotTrained when
// no training run has been recorded.
func (r *EncodingRepository) Load(ctx context.Context) (*database.EncodingDatabase, error) {
	db := &database.EncodingDatabase{}

	err := r.pool.QueryRow(ctx, `
		SELECT model, dim, trained_at
		FROM training_runs
		ORDER BY trained_at DESC
		LIMIT 1
	`).Scan(&db.Model, &db.Dim, &db.TrainedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotTrained
	}
	if err != nil {
		return nil, fmt.Errorf("query training run: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT name, source, embedding
		FROM encodings
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query encodings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, source string
		var vec pgvector.Vector
		if err := rows.Scan(&name, &source, &vec); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		db.Encodings = append(db.Encodings, vec.Slice())
		db.Names = append(db.Names, name)
		db.Sources = append(db.Sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}

	return db, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *EncodingRepository) Close() error {
	return nil
}
