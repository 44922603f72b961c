// Package extract orchestrates a single extraction run: it decides which
// strategy applies, drives the page text provider, parses the text into a
// table, and persists the resulting job and dataset.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/repository"
	"github.com/hericlibong/Infograph2Data/internal/tabular"
)

// PageText is the slice of the PDF provider this service needs.
type PageText interface {
	HasText(path string, page int) (bool, error)
	Text(path string, page int, bbox []float64) (string, error)
	Blocks(path string, page int, bbox []float64) ([]entity.TextBlock, error)
}

// Request describes one extraction run over a stored file.
type Request struct {
	FilePath string
	FileID   string
	Page     int
	BBox     []float64
	Strategy constants.ExtractionStrategy
}

// Service runs extractions synchronously. Each run creates one job record
// and, on success, one dataset.
type Service struct {
	jobs     repository.JobRepository
	datasets repository.DatasetRepository
	provider PageText
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(jobs repository.JobRepository, datasets repository.DatasetRepository, provider PageText, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:     jobs,
		datasets: datasets,
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the extraction policy for one request. The returned job is
// always persisted in a terminal state; the dataset is non-nil only when the
// run completed. Policy failures (no text layer, unimplemented strategy)
// finish the job without returning an error; only store failures propagate.
func (s *Service) Run(ctx context.Context, req Request) (*entity.Job, *entity.Dataset, error) {
	now := s.now()
	job := &entity.Job{
		ID:                common.ShortID("job"),
		DatasetID:         common.ShortID("ds"),
		FileID:            req.FileID,
		Page:              req.Page,
		BBox:              req.BBox,
		Status:            constants.JobRunning,
		StrategyRequested: req.Strategy,
		CreatedAt:         now,
		Logs:              []string{},
	}
	job.Logf("Starting extraction on page %d", req.Page)

	dataset, err := s.run(ctx, req, job)
	if err != nil {
		job.Logf("Error: %v", err)
		job.Finish(constants.JobFailed, err.Error(), s.now())
	}
	if putErr := s.jobs.Put(ctx, job); putErr != nil {
		return nil, nil, fmt.Errorf("persist job %s: %w", job.ID, putErr)
	}

	s.logger.Info("extract.run.done",
		"job_id", job.ID,
		"file_id", req.FileID,
		"page", req.Page,
		"status", string(job.Status),
		"elapsed_ms", s.now().Sub(now).Milliseconds())
	return job, dataset, nil
}

// run applies the strategy policy and mutates job in place. A nil error with
// a nil dataset means the job ended on a policy outcome such as needs_ocr.
func (s *Service) run(ctx context.Context, req Request, job *entity.Job) (*entity.Dataset, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = constants.StrategyAuto
	}

	if !strings.HasSuffix(strings.ToLower(req.FilePath), ".pdf") {
		job.Logf("File is an image, would need OCR")
		job.Finish(constants.JobNeedsOCR, "", s.now())
		return nil, nil
	}

	hasText, err := s.provider.HasText(req.FilePath, req.Page)
	if err != nil {
		return nil, err
	}
	job.Logf("Page has text layer: %t", hasText)

	if strategy == constants.StrategyAuto {
		if hasText {
			strategy = constants.StrategyPDFText
			job.Logf("Auto-selected strategy: pdf_text")
		} else {
			job.Logf("No text layer found, OCR or Vision LLM needed")
			job.Finish(constants.JobNeedsOCR, "", s.now())
			return nil, nil
		}
	}

	switch strategy {
	case constants.StrategyPDFText:
		if !hasText {
			job.Finish(constants.JobNeedsOCR, "PDF page has no extractable text", s.now())
			return nil, nil
		}
		return s.runPDFText(ctx, req, job)

	case constants.StrategyOCR:
		job.Finish(constants.JobFailed, "OCR strategy not yet implemented", s.now())
		return nil, nil

	case constants.StrategyVisionLLM:
		job.Finish(constants.JobFailed, "Vision LLM extraction runs through the identify flow", s.now())
		return nil, nil

	default:
		return nil, common.Errorf(common.KindInvalidInput, "unsupported strategy: %s", strategy)
	}
}

func (s *Service) runPDFText(ctx context.Context, req Request, job *entity.Job) (*entity.Dataset, error) {
	rawText, err := s.provider.Text(req.FilePath, req.Page, req.BBox)
	if err != nil {
		return nil, err
	}
	job.Logf("Extracted %d characters", len(rawText))

	blocks, err := s.provider.Blocks(req.FilePath, req.Page, req.BBox)
	if err != nil {
		return nil, err
	}
	job.Logf("Found %d text blocks", len(blocks))

	columns, rows := tabular.ParseTable(rawText)
	job.Logf("Parsed %d rows with %d columns", len(rows), len(columns))

	confidence := 0.3
	if len(rows) > 0 {
		confidence = 0.8
	}

	dataset := &entity.Dataset{
		ID:           job.DatasetID,
		JobID:        job.ID,
		FileID:       req.FileID,
		Page:         req.Page,
		BBox:         req.BBox,
		StrategyUsed: constants.StrategyPDFText,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.CreatedAt,
		Columns:      columns,
		Rows:         rows,
		RawText:      rawText,
		Confidence:   &confidence,
		EditHistory:  []entity.EditHistoryEntry{},
	}
	if err := s.datasets.Put(ctx, dataset); err != nil {
		return nil, fmt.Errorf("persist dataset %s: %w", dataset.ID, err)
	}

	job.StrategyUsed = constants.StrategyPDFText
	job.Finish(constants.JobCompleted, "", s.now())
	job.Logf("Extraction completed successfully")
	return dataset, nil
}
