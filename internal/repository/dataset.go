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

// DatasetRepository stores datasets as whole JSON documents keyed by id.
type DatasetRepository interface {
	Get(ctx context.Context, id string) (*entity.Dataset, error)
	Put(ctx context.Context, ds *entity.Dataset) error
	List(ctx context.Context) ([]*entity.Dataset, error)
}

type datasetRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewDatasetRepository(db *sql.DB, log *slog.Logger) DatasetRepository {
	if log == nil {
		log = slog.Default()
	}
	return &datasetRepo{db: db, log: log}
}

func (r *datasetRepo) Get(ctx context.Context, id string) (*entity.Dataset, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM datasets WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.Errorf(common.KindNotFound, "dataset not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", id, err)
	}

	var ds entity.Dataset
	if err := json.Unmarshal([]byte(doc), &ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", id, err)
	}
	return &ds, nil
}

func (r *datasetRepo) Put(ctx context.Context, ds *entity.Dataset) error {
	doc, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", ds.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO datasets (id, created_at, doc) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, ds.ID, ds.CreatedAt.UTC().Format(createdAtFormat), string(doc))
	if err != nil {
		return fmt.Errorf("put dataset %s: %w", ds.ID, err)
	}
	r.log.Debug("store.dataset.put", "dataset_id", ds.ID, "rows", len(ds.Rows))
	return nil
}

// List returns all datasets, newest-created first.
func (r *datasetRepo) List(ctx context.Context) ([]*entity.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM datasets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []*entity.Dataset
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		var ds entity.Dataset
		if err := json.Unmarshal([]byte(doc), &ds); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		out = append(out, &ds)
	}
	return out, rows.Err()
}
