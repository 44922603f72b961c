package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

// JobRepository stores extraction jobs as whole JSON documents keyed by id.
type JobRepository interface {
	Get(ctx context.Context, id string) (*entity.Job, error)
	Put(ctx context.Context, job *entity.Job) error
}

type jobRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewJobRepository(db *sql.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Get(ctx context.Context, id string) (*entity.Job, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM jobs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.Errorf(common.KindNotFound, "job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query job %s: %w", id, err)
	}

	var job entity.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (r *jobRepo) Put(ctx context.Context, job *entity.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, created_at, doc) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, job.ID, job.CreatedAt.UTC().Format(createdAtFormat), string(doc))
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	r.log.Debug("store.job.put", "job_id", job.ID, "status", job.Status)
	return nil
}
