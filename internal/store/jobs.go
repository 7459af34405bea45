package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// DefaultListLimit bounds job listings when the filter sets no limit.
const DefaultListLimit = 100

// PostgresJobs is the core.JobRepository backed by the import_jobs table.
type PostgresJobs struct {
	db DBTX
}

func NewPostgresJobs(db DBTX) *PostgresJobs {
	return &PostgresJobs{db: db}
}

const jobColumns = `id, document_id, file_name, entity_type, locale, date_format,
	attributes, created_at, success_count, error_count, completed_at`

func (s *PostgresJobs) FindByID(ctx context.Context, id string) (*core.ImportJob, error) {
	key := toPgUUID(id)
	if !key.Valid {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, key)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find import job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresJobs) Create(ctx context.Context, job *core.ImportJob) error {
	attrs, err := marshalAttributes(job.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO import_jobs (id, document_id, file_name, entity_type, locale, date_format, attributes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		toPgUUID(job.ID), job.DocumentID, job.FileName, string(job.EntityType),
		job.Locale, job.DateFormat, attrs, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

// Save writes the counters and completion time of a finished run.
func (s *PostgresJobs) Save(ctx context.Context, job *core.ImportJob) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE import_jobs
		SET success_count = $2, error_count = $3, completed_at = $4
		WHERE id = $1`,
		toPgUUID(job.ID), job.SuccessCount, job.ErrorCount, toPgTimestamptz(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update import job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, job.ID)
	}
	return nil
}

// List returns jobs newest first.
func (s *PostgresJobs) List(ctx context.Context, filter core.JobFilter) ([]core.ImportJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM import_jobs`
	args := []any{}
	if filter.EntityType != "" {
		args = append(args, string(filter.EntityType))
		query += fmt.Sprintf(" WHERE entity_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]core.ImportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*core.ImportJob, error) {
	var (
		id        pgtype.UUID
		entity    string
		attrs     []byte
		completed pgtype.Timestamptz
		job       core.ImportJob
	)
	err := row.Scan(&id, &job.DocumentID, &job.FileName, &entity, &job.Locale, &job.DateFormat,
		&attrs, &job.CreatedAt, &job.SuccessCount, &job.ErrorCount, &completed)
	if err != nil {
		return nil, err
	}
	job.ID = pgUUIDToString(id)
	job.EntityType = core.EntityType(entity)
	job.CreatedAt = job.CreatedAt.UTC()
	job.CompletedAt = fromPgTimestamptz(completed)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &job.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		if len(job.Attributes) == 0 {
			job.Attributes = nil
		}
	}
	return &job, nil
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if len(attrs) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return b, nil
}
