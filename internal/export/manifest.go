package export

import (
	"time"

	"github.com/hericlibong/Infograph2Data/internal/entity"
)

// Manifest records the provenance of an exported dataset: where the data came
// from, how it was extracted, and what edits it has seen.
type Manifest struct {
	DatasetID  string     `json:"dataset_id"`
	ExportedAt time.Time  `json:"exported_at"`
	Source     Source     `json:"source"`
	Extraction Extraction `json:"extraction"`
	Data       Data       `json:"data"`
	Edits      Edits      `json:"edits"`
}

type Source struct {
	FileID   string    `json:"file_id"`
	Filename string    `json:"filename"`
	Page     int       `json:"page"`
	BBox     []float64 `json:"bbox,omitempty"`
}

type Extraction struct {
	JobID       string    `json:"job_id"`
	Strategy    string    `json:"strategy"`
	ExtractedAt time.Time `json:"extracted_at"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

type Data struct {
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

type Edits struct {
	TotalEdits   int                       `json:"total_edits"`
	LastEditedAt *time.Time                `json:"last_edited_at,omitempty"`
	History      []entity.EditHistoryEntry `json:"history"`
}

func buildManifest(ds *entity.Dataset, filename string, columns []string, rowCount int, now time.Time) Manifest {
	history := ds.EditHistory
	if history == nil {
		history = []entity.EditHistoryEntry{}
	}
	var lastEdited *time.Time
	if len(history) > 0 {
		updated := ds.UpdatedAt
		lastEdited = &updated
	}
	return Manifest{
		DatasetID:  ds.ID,
		ExportedAt: now,
		Source: Source{
			FileID:   ds.FileID,
			Filename: filename,
			Page:     ds.Page,
			BBox:     ds.BBox,
		},
		Extraction: Extraction{
			JobID:       ds.JobID,
			Strategy:    string(ds.StrategyUsed),
			ExtractedAt: ds.CreatedAt,
			Confidence:  ds.Confidence,
		},
		Data: Data{
			Columns:  columns,
			RowCount: rowCount,
		},
		Edits: Edits{
			TotalEdits:   len(history),
			LastEditedAt: lastEdited,
			History:      history,
		},
	}
}
