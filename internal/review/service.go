// Package review applies user edits to extracted datasets and keeps their
// append-only edit history.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/repository"
)

// Service loads a dataset, applies a partial update, and persists the result
// as one whole-record write.
type Service struct {
	datasets repository.DatasetRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(datasets repository.DatasetRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{datasets: datasets, logger: logger, now: time.Now}
}

// Update applies a partial update to the stored dataset and returns the new
// version. When the update carries neither columns nor rows, the dataset is
// returned unchanged and nothing is persisted.
func (s *Service) Update(ctx context.Context, datasetID string, upd entity.DatasetUpdate) (*entity.Dataset, error) {
	ds, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	changes := Apply(ds, upd, s.now().UTC())
	if changes == nil {
		return ds, nil
	}

	if err := s.datasets.Put(ctx, ds); err != nil {
		return nil, err
	}
	s.logger.Info("review.update.ok",
		"dataset_id", ds.ID,
		"changes", changes,
		"edit_count", len(ds.EditHistory),
	)
	return ds, nil
}

// Apply mutates ds in place per the partial update and returns the change
// summary, or nil when the update was empty.
//
// Column replacement records added/removed names as unordered set
// differences while the stored column order is taken verbatim from the
// update. Row replacement is wholesale; its summary is counts only, and
// rows_modified is deliberately the size of the replacement payload rather
// than a per-row diff; downstream consumers rely on that exact semantics.
func Apply(ds *entity.Dataset, upd entity.DatasetUpdate, now time.Time) map[string]any {
	changes := make(map[string]any)

	if upd.Columns != nil {
		oldSet := stringSet(ds.Columns)
		newSet := stringSet(*upd.Columns)
		changes["columns_added"] = difference(*upd.Columns, oldSet)
		changes["columns_removed"] = difference(ds.Columns, newSet)
		ds.Columns = *upd.Columns
	}

	if upd.Rows != nil {
		oldIDs := rowIDSet(ds.Rows)
		newIDs := rowIDSet(*upd.Rows)
		changes["rows_added"] = countMissing(newIDs, oldIDs)
		changes["rows_removed"] = countMissing(oldIDs, newIDs)
		changes["rows_modified"] = len(*upd.Rows)
		ds.Rows = *upd.Rows
	}

	if len(changes) == 0 {
		return nil
	}

	ds.EditHistory = append(ds.EditHistory, entity.EditHistoryEntry{
		Timestamp: now,
		Action:    entity.ActionUpdate,
		Changes:   changes,
	})
	ds.UpdatedAt = now
	return changes
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// difference keeps values absent from the exclusion set, first occurrence
// only, preserving order. The result is always non-nil so an empty diff
// serializes as [].
func difference(values []string, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := exclude[v]; ok {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func rowIDSet(rows []entity.Row) map[int]struct{} {
	set := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		set[r.ID] = struct{}{}
	}
	return set
}

func countMissing(from, in map[int]struct{}) int {
	n := 0
	for id := range from {
		if _, ok := in[id]; !ok {
			n++
		}
	}
	return n
}
