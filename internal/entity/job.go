package entity

import (
	"fmt"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
)

// Job tracks a single extraction run. Jobs are created in the running state
// and are write-once after reaching a terminal status.
type Job struct {
	ID                string                       `json:"job_id"`
	DatasetID         string                       `json:"dataset_id"`
	FileID            string                       `json:"file_id"`
	Page              int                          `json:"page"`
	BBox              []float64                    `json:"bbox,omitempty"`
	Status            constants.JobStatus          `json:"status"`
	StrategyRequested constants.ExtractionStrategy `json:"strategy_requested"`
	StrategyUsed      constants.ExtractionStrategy `json:"strategy_used,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
	CompletedAt       *time.Time                   `json:"completed_at,omitempty"`
	Error             string                       `json:"error,omitempty"`
	Logs              []string                     `json:"logs"`
}

// Logf appends a human-readable trace line to the job log.
func (j *Job) Logf(format string, args ...any) {
	j.Logs = append(j.Logs, fmt.Sprintf(format, args...))
}

// Finish moves the job to a terminal status and stamps the completion time.
func (j *Job) Finish(status constants.JobStatus, errMsg string, now time.Time) {
	j.Status = status
	j.Error = errMsg
	j.CompletedAt = &now
}

// TextBlock is one positioned block of page text from the text provider.
// Coordinates use a top-left origin, matching the page preview geometry.
type TextBlock struct {
	X0      float64 `json:"x0"`
	Y0      float64 `json:"y0"`
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	Text    string  `json:"text"`
	BlockNo int     `json:"block_no"`
}
