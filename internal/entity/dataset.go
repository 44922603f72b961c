package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
)

// Row is one record of a dataset: a synthetic 1-based identifier plus a
// dynamic set of column-keyed scalar cells (string, float64, bool or nil).
// On the wire a row is a flat object: {"row_id": 1, "Name": "Alice", ...}.
type Row struct {
	ID     int
	Fields map[string]any
}

// NewRow builds a row with an empty field set.
func NewRow(id int) Row {
	return Row{ID: id, Fields: make(map[string]any)}
}

// Get returns the cell for a column, or nil when absent.
func (r Row) Get(column string) any {
	return r.Fields[column]
}

// Set assigns a cell value, allocating the field map when needed.
func (r *Row) Set(column string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[column] = value
}

// MarshalJSON flattens the row into a single object with a row_id key.
func (r Row) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["row_id"] = r.ID
	return json.Marshal(flat)
}

// UnmarshalJSON accepts the flat object shape; row_id may arrive as a JSON
// number or a numeric string and is normalized to an integer.
func (r *Row) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.Fields = make(map[string]any, len(flat))
	for k, v := range flat {
		if k == "row_id" {
			id, err := normalizeRowID(v)
			if err != nil {
				return err
			}
			r.ID = id
			continue
		}
		r.Fields[k] = v
	}
	return nil
}

func normalizeRowID(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case string:
		var id int
		if _, err := fmt.Sscanf(t, "%d", &id); err == nil {
			return id, nil
		}
		// ids like "r12" from the vision model: keep the numeric tail
		var tail int
		if _, err := fmt.Sscanf(t, "r%d", &tail); err == nil {
			return tail, nil
		}
		return 0, fmt.Errorf("row_id %q is not numeric", t)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("row_id has unsupported type %T", v)
	}
}

// Edit history actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// EditHistoryEntry is one immutable record in a dataset's append-only
// history. The changes payload shape depends on what changed: column
// replacement carries columns_added/columns_removed; row replacement carries
// rows_added/rows_removed/rows_modified counts.
type EditHistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Changes   map[string]any `json:"changes"`
}

// Dataset is an extracted table plus its provenance.
//
// Invariants: every row's keys are a subset of Columns; UpdatedAt >=
// CreatedAt; EditHistory is append-only.
type Dataset struct {
	ID           string                       `json:"id"`
	JobID        string                       `json:"job_id"`
	FileID       string                       `json:"file_id"`
	Page         int                          `json:"page"`
	BBox         []float64                    `json:"bbox,omitempty"` // x1,y1,x2,y2 in page points
	StrategyUsed constants.ExtractionStrategy `json:"strategy_used"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
	Columns      []string                     `json:"columns"`
	Rows         []Row                        `json:"rows"`
	RawText      string                       `json:"raw_text,omitempty"`
	Confidence   *float64                     `json:"confidence,omitempty"` // in [0,1]
	EditHistory  []EditHistoryEntry           `json:"edit_history"`
}

// DatasetUpdate is a partial replacement request. Nil means "leave
// unchanged"; a non-nil empty slice is a deliberate replacement with nothing.
type DatasetUpdate struct {
	Columns *[]string `json:"columns"`
	Rows    *[]Row    `json:"rows"`
}

// DatasetSummary is the listing shape for a dataset.
type DatasetSummary struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	FileID      string    `json:"file_id"`
	Page        int       `json:"page"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary returns the listing shape for this dataset.
func (d *Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		ID:          d.ID,
		JobID:       d.JobID,
		FileID:      d.FileID,
		Page:        d.Page,
		RowCount:    len(d.Rows),
		ColumnCount: len(d.Columns),
		CreatedAt:   d.CreatedAt,
	}
}
