package job

import (
	"context"
	"database/sql"
)

type Repository interface {
	Save(ctx context.Context, run *FailedRun) error
	List(ctx context.Context) ([]FailedRun, error)
	Get(ctx context.Context, id string) (*FailedRun, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// PostgresRepo persists the failed-run ledger in the `failed_runs`
// table (see migrations/).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, run *FailedRun) error {
	query := `INSERT INTO failed_runs (document_id, user_id, original_filename, raw_file_path, failed_step, status, error_detail, retry_count)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		run.DocumentID, run.UserID, run.OriginalFilename, run.RawFilePath, run.FailedStep, run.Status, run.ErrorDetail, run.RetryCount,
	).Scan(&run.ID, &run.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]FailedRun, error) {
	query := `SELECT id, document_id, user_id, original_filename, raw_file_path, failed_step, status, error_detail, retry_count, created_at
	          FROM failed_runs ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []FailedRun
	for rows.Next() {
		var run FailedRun
		if err := rows.Scan(&run.ID, &run.DocumentID, &run.UserID, &run.OriginalFilename, &run.RawFilePath,
			&run.FailedStep, &run.Status, &run.ErrorDetail, &run.RetryCount, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*FailedRun, error) {
	run := &FailedRun{}
	query := `SELECT id, document_id, user_id, original_filename, raw_file_path, failed_step, status, error_detail, retry_count, created_at
	          FROM failed_runs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.DocumentID, &run.UserID, &run.OriginalFilename, &run.RawFilePath,
		&run.FailedStep, &run.Status, &run.ErrorDetail, &run.RetryCount, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_runs WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_runs`).Scan(&count)
	return count, err
}
