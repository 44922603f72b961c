package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

type fakeProvider struct {
	hasText bool
	text    string
	blocks  []entity.TextBlock
	err     error
}

func (f *fakeProvider) HasText(path string, page int) (bool, error) {
	return f.hasText, f.err
}

func (f *fakeProvider) Text(path string, page int, bbox []float64) (string, error) {
	return f.text, f.err
}

func (f *fakeProvider) Blocks(path string, page int, bbox []float64) ([]entity.TextBlock, error) {
	return f.blocks, f.err
}

type memJobs struct {
	jobs map[string]*entity.Job
	err  error
}

func (m *memJobs) Get(ctx context.Context, id string) (*entity.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, common.Errorf(common.KindNotFound, "job not found: %s", id)
	}
	return job, nil
}

func (m *memJobs) Put(ctx context.Context, job *entity.Job) error {
	if m.err != nil {
		return m.err
	}
	if m.jobs == nil {
		m.jobs = map[string]*entity.Job{}
	}
	m.jobs[job.ID] = job
	return nil
}

type memDatasets struct {
	datasets map[string]*entity.Dataset
	err      error
}

func (m *memDatasets) Get(ctx context.Context, id string) (*entity.Dataset, error) {
	ds, ok := m.datasets[id]
	if !ok {
		return nil, common.Errorf(common.KindNotFound, "dataset not found: %s", id)
	}
	return ds, nil
}

func (m *memDatasets) Put(ctx context.Context, ds *entity.Dataset) error {
	if m.err != nil {
		return m.err
	}
	if m.datasets == nil {
		m.datasets = map[string]*entity.Dataset{}
	}
	m.datasets[ds.ID] = ds
	return nil
}

func (m *memDatasets) List(ctx context.Context) ([]*entity.Dataset, error) {
	var out []*entity.Dataset
	for _, ds := range m.datasets {
		out = append(out, ds)
	}
	return out, nil
}

func newTestService(provider *fakeProvider) (*Service, *memJobs, *memDatasets) {
	jobs := &memJobs{}
	datasets := &memDatasets{}
	svc := NewService(jobs, datasets, provider, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc, jobs, datasets
}

func TestRunAutoWithTextLayer(t *testing.T) {
	provider := &fakeProvider{
		hasText: true,
		text:    "Name\tAge\nAlice\t30\nBob\t25",
	}
	svc, jobs, datasets := newTestService(provider)

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyAuto,
	})
	require.NoError(t, err)
	require.NotNil(t, ds)

	assert.Equal(t, constants.JobCompleted, job.Status)
	assert.Equal(t, constants.StrategyPDFText, job.StrategyUsed)
	assert.NotNil(t, job.CompletedAt)
	assert.Contains(t, job.Logs, "Auto-selected strategy: pdf_text")
	assert.Contains(t, job.Logs, "Parsed 2 rows with 2 columns")

	assert.Equal(t, job.DatasetID, ds.ID)
	assert.Equal(t, job.ID, ds.JobID)
	assert.Equal(t, []string{"Name", "Age"}, ds.Columns)
	require.NotNil(t, ds.Confidence)
	assert.Equal(t, 0.8, *ds.Confidence)

	// Both records were persisted.
	assert.Contains(t, jobs.jobs, job.ID)
	assert.Contains(t, datasets.datasets, ds.ID)
}

func TestRunAutoWithoutTextLayer(t *testing.T) {
	svc, _, datasets := newTestService(&fakeProvider{hasText: false})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyAuto,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobNeedsOCR, job.Status)
	assert.Empty(t, job.Error)
	assert.Contains(t, job.Logs, "No text layer found, OCR or Vision LLM needed")
	assert.Empty(t, datasets.datasets)
}

func TestRunExplicitPDFTextWithoutTextLayerFails(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{hasText: false})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyPDFText,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobNeedsOCR, job.Status)
	assert.Equal(t, "PDF page has no extractable text", job.Error)
}

func TestRunNonPDFNeedsOCR(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{hasText: true})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.png",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyAuto,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobNeedsOCR, job.Status)
	assert.Contains(t, job.Logs, "File is an image, would need OCR")
}

func TestRunOCRStrategyUnimplemented(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{hasText: true})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyOCR,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobFailed, job.Status)
	assert.Equal(t, "OCR strategy not yet implemented", job.Error)
}

func TestRunVisionStrategyRedirects(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{hasText: true})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyVisionLLM,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobFailed, job.Status)
}

func TestRunProviderErrorFailsJob(t *testing.T) {
	svc, jobs, _ := newTestService(&fakeProvider{err: errors.New("pdfium crashed")})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyAuto,
	})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, constants.JobFailed, job.Status)
	assert.Equal(t, "pdfium crashed", job.Error)
	assert.Contains(t, job.Logs, "Error: pdfium crashed")
	assert.Contains(t, jobs.jobs, job.ID)
}

func TestRunLowConfidenceWhenNoRows(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{hasText: true, text: ""})

	job, ds, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyPDFText,
	})
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.Equal(t, constants.JobCompleted, job.Status)
	assert.Empty(t, ds.Rows)
	require.NotNil(t, ds.Confidence)
	assert.Equal(t, 0.3, *ds.Confidence)
}

func TestRunJobStoreErrorPropagates(t *testing.T) {
	svc, jobs, _ := newTestService(&fakeProvider{hasText: true, text: "a: 1\nb: 2"})
	jobs.err = errors.New("disk full")

	_, _, err := svc.Run(context.Background(), Request{
		FilePath: "/store/f1/original.pdf",
		FileID:   "f1",
		Page:     1,
		Strategy: constants.StrategyAuto,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
