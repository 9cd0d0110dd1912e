package submissions

import (
	"context"
	"database/sql"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO submissions (
    id,
    email,
    status,
    stage,
    resume_key,
    embedding_key,
    embedding_dims,
    error_message,
    input_source,
    duration_ms,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	source := rec.InputSource
	if source == "" {
		source = SourceText
	}
	_, err := r.DB.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Email,
		rec.Status,
		rec.Stage,
		rec.ResumeKey,
		rec.EmbeddingKey,
		rec.EmbeddingDims,
		rec.ErrorMessage,
		source,
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// List returns records newest first, optionally only those for email.
func (r *PGRepo) List(ctx context.Context, email string, limit int) ([]Record, error) {
	const query = `
SELECT id, email, status, stage, resume_key, embedding_key, embedding_dims, error_message, input_source, duration_ms, created_at
FROM submissions
WHERE ($1 = '' OR email = $1)
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, email, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Email,
			&rec.Status,
			&rec.Stage,
			&rec.ResumeKey,
			&rec.EmbeddingKey,
			&rec.EmbeddingDims,
			&rec.ErrorMessage,
			&rec.InputSource,
			&rec.DurationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}
