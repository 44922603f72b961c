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

// IdentificationRepository stores phase-1 identification records. Expired
// records are not reaped; they sit in the store until a reader rejects them.
type IdentificationRepository interface {
	Get(ctx context.Context, id string) (*entity.Identification, error)
	Put(ctx context.Context, ident *entity.Identification) error
}

type identificationRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewIdentificationRepository(db *sql.DB, log *slog.Logger) IdentificationRepository {
	if log == nil {
		log = slog.Default()
	}
	return &identificationRepo{db: db, log: log}
}

func (r *identificationRepo) Get(ctx context.Context, id string) (*entity.Identification, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM identifications WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.Errorf(common.KindNotFound, "identification not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query identification %s: %w", id, err)
	}

	var ident entity.Identification
	if err := json.Unmarshal([]byte(doc), &ident); err != nil {
		return nil, fmt.Errorf("decode identification %s: %w", id, err)
	}
	return &ident, nil
}

func (r *identificationRepo) Put(ctx context.Context, ident *entity.Identification) error {
	doc, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("encode identification %s: %w", ident.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO identifications (id, created_at, doc) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, ident.ID, ident.CreatedAt.UTC().Format(createdAtFormat), string(doc))
	if err != nil {
		return fmt.Errorf("put identification %s: %w", ident.ID, err)
	}
	r.log.Debug("store.identification.put", "identification_id", ident.ID, "items", len(ident.DetectedItems))
	return nil
}
