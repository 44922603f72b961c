package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/export"
	"github.com/hericlibong/Infograph2Data/internal/extract"
	"github.com/hericlibong/Infograph2Data/internal/repository"
	"github.com/hericlibong/Infograph2Data/internal/review"
	"github.com/hericlibong/Infograph2Data/internal/vision"
)

// fakePages serves canned page data so handlers can be exercised without a
// real PDF runtime.
type fakePages struct {
	pageCount int
	text      string
	renderErr error
}

func (f *fakePages) PageCount(path string) (int, error) { return f.pageCount, nil }

func (f *fakePages) Pages(path string) ([]entity.PageInfo, error) {
	pages := make([]entity.PageInfo, f.pageCount)
	for i := range pages {
		pages[i] = entity.PageInfo{Page: i + 1, Width: 612, Height: 792, HasText: f.text != ""}
	}
	return pages, nil
}

func (f *fakePages) HasText(path string, page int) (bool, error) { return f.text != "", nil }

func (f *fakePages) Text(path string, page int, bbox []float64) (string, error) {
	return f.text, nil
}

func (f *fakePages) Blocks(path string, page int, bbox []float64) ([]entity.TextBlock, error) {
	return nil, nil
}

func (f *fakePages) Render(path string, page int, scale float64, format string) ([]byte, string, error) {
	if f.renderErr != nil {
		return nil, "", f.renderErr
	}
	return []byte("fake-image"), "image/" + format, nil
}

type fakeModel struct {
	configured bool
	response   string
}

func (f *fakeModel) Configured() bool { return f.configured }

func (f *fakeModel) Infer(ctx context.Context, imagePath, prompt string, maxTokens int) (string, error) {
	return f.response, nil
}

type testEnv struct {
	handler http.Handler
	files   *repository.FileStore
	model   *fakeModel
	pages   *fakePages
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := repository.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	files, err := repository.NewFileStore(filepath.Join(dir, "files"), nil)
	require.NoError(t, err)

	jobs := repository.NewJobRepository(db, nil)
	datasets := repository.NewDatasetRepository(db, nil)
	idents := repository.NewIdentificationRepository(db, nil)

	pages := &fakePages{pageCount: 3, text: "Region  Value\nNorth  10\nSouth  20"}
	model := &fakeModel{}

	extractSvc := extract.NewService(jobs, datasets, pages, nil)
	reviewSvc := review.NewService(datasets, nil)
	visionSvc := vision.NewService(idents, datasets, files, pages, model, vision.Config{}, nil)
	exportSvc := export.NewService(datasets, files, nil)

	srv := New(
		common.ServerConfig{MaxUploadBytes: 1 << 20},
		files, jobs, datasets, pages,
		extractSvc, reviewSvc, visionSvc, exportSvc, nil,
	)
	return &testEnv{handler: srv.Handler(), files: files, model: model, pages: pages}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte) entity.FileMetadata {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var meta entity.FileMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	return meta
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestUploadPDFRecordsPageCount(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	assert.Equal(t, "report.pdf", meta.Filename)
	assert.Equal(t, "application/pdf", meta.MIMEType)
	require.NotNil(t, meta.Pages)
	assert.Equal(t, 3, *meta.Pages)

	rec := env.do(t, http.MethodGet, "/files/"+meta.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[entity.FileMetadata](t, rec)
	assert.Equal(t, meta.ID, got.ID)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error, "unsupported content type")
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "chart.png", []byte("not-a-real-png"))

	rec := env.do(t, http.MethodDelete, "/files/"+meta.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/files/"+meta.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFiles(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.png", []byte("a"))
	env.upload(t, "b.png", []byte("b"))

	rec := env.do(t, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]entity.FileMetadata](t, rec)
	assert.Len(t, body["files"], 2)
}

func TestPagesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	rec := env.do(t, http.MethodGet, "/files/"+meta.ID+"/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[pagesResponse](t, rec)
	assert.Equal(t, meta.ID, body.FileID)
	assert.Equal(t, "report.pdf", body.Filename)
	assert.Equal(t, 3, body.TotalPages)
	require.Len(t, body.Pages, 3)
	assert.True(t, body.Pages[0].HasText)
}

func TestPagesRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "chart.png", []byte("png-bytes"))

	rec := env.do(t, http.MethodGet, "/files/"+meta.ID+"/pages", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "File is not a PDF", body.Error)
}

func TestPreviewReturnsImage(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	rec := env.do(t, http.MethodGet, "/files/"+meta.ID+"/pages/2/preview?format=jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake-image", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/files/"+meta.ID+"/pages/2/preview?scale=9", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractFlow(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	rec := env.do(t, http.MethodPost, "/extract", map[string]any{
		"file_id": meta.ID,
		"page":    1,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[extractResponse](t, rec)
	assert.Equal(t, "completed", string(resp.Status))
	require.NotEmpty(t, resp.JobID)
	require.NotEmpty(t, resp.DatasetID)

	rec = env.do(t, http.MethodGet, "/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[entity.Job](t, rec)
	assert.Equal(t, resp.DatasetID, job.DatasetID)

	rec = env.do(t, http.MethodGet, "/datasets/"+resp.DatasetID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ds := decode[entity.Dataset](t, rec)
	assert.Equal(t, resp.JobID, ds.JobID)
	assert.NotEmpty(t, ds.Columns)
}

func TestExtractValidation(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	rec := env.do(t, http.MethodPost, "/extract", map[string]any{
		"file_id":  meta.ID,
		"strategy": "magic",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/extract", map[string]any{
		"file_id": "nope",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/extract", map[string]any{
		"file_id": meta.ID,
		"page":    99,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error, "out of range")
}

func TestDatasetUpdate(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))

	rec := env.do(t, http.MethodPost, "/extract", map[string]any{"file_id": meta.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[extractResponse](t, rec)

	rec = env.do(t, http.MethodPut, "/datasets/"+resp.DatasetID, map[string]any{
		"rows": []map[string]any{
			{"row_id": 1, "Region": "North", "Value": "11"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ds := decode[entity.Dataset](t, rec)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "11", ds.Rows[0].Get("Value"))
	require.NotEmpty(t, ds.EditHistory)
	assert.Equal(t, entity.ActionUpdate, ds.EditHistory[len(ds.EditHistory)-1].Action)
}

func TestDatasetList(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))
	rec := env.do(t, http.MethodPost, "/extract", map[string]any{"file_id": meta.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodGet, "/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]entity.DatasetSummary](t, rec)
	require.Len(t, body["datasets"], 1)
	assert.Equal(t, 2, body["datasets"][0].RowCount)
}

func TestExportDownload(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "report.pdf", []byte("%PDF-1.4 fake"))
	rec := env.do(t, http.MethodPost, "/extract", map[string]any{"file_id": meta.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[extractResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/export/"+resp.DatasetID+"?formats=csv,json", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), resp.DatasetID+".zip")
	assert.NotZero(t, rec.Body.Len())

	rec = env.do(t, http.MethodGet, "/export/"+resp.DatasetID+"?source_filter=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/export/ds-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentifyWhenUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	meta := env.upload(t, "chart.png", []byte("png-bytes"))

	rec := env.do(t, http.MethodPost, "/extract/identify", map[string]any{"file_id": meta.ID})
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error, "not configured")
}

func TestVisionIdentifyAndRun(t *testing.T) {
	env := newTestEnv(t)
	env.model.configured = true
	meta := env.upload(t, "chart.png", []byte("png-bytes"))

	env.model.response = `{
		"image_width": 1200,
		"image_height": 900,
		"detected_items": [
			{"type": "bar_chart", "title": "Sales",
			 "description": "Quarterly sales", "data_preview": "Q1: 10",
			 "bbox": {"x": 10, "y": 20, "width": 300, "height": 200}, "confidence": 0.9}
		]
	}`
	rec := env.do(t, http.MethodPost, "/extract/identify", map[string]any{"file_id": meta.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ident := decode[entity.Identification](t, rec)
	require.Len(t, ident.DetectedItems, 1)
	assert.Equal(t, "item-1", ident.DetectedItems[0].ItemID)

	rec = env.do(t, http.MethodGet, "/extract/identify/"+ident.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env.model.response = `{
		"extractions": [
			{"item_id": "item-1", "title": "Sales", "columns": ["Quarter", "Value"],
			 "rows": [{"Quarter": "Q1", "Value": 10}, {"Quarter": "Q2", "Value": 12}],
			 "confidence": 0.85}
		]
	}`
	rec = env.do(t, http.MethodPost, "/extract/run", map[string]any{
		"identification_id": ident.ID,
		"items":             []map[string]any{{"item_id": "item-1"}},
		"options":           map[string]any{"granularity": "full"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[visionRunResponse](t, rec)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, ident.ID, run.IdentificationID)
	require.Len(t, run.Datasets, 1)
	assert.Equal(t, []string{"Quarter", "Value"}, run.Datasets[0].Columns)
	require.Len(t, run.Datasets[0].Rows, 2)

	rec = env.do(t, http.MethodGet, "/datasets/"+run.Datasets[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVisionRunRequiresItems(t *testing.T) {
	env := newTestEnv(t)
	env.model.configured = true

	rec := env.do(t, http.MethodPost, "/extract/run", map[string]any{
		"identification_id": "ident-x",
		"items":             []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownJobReturns404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/jobs/job-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "not_found", body.Kind)
	assert.Equal(t, fmt.Sprintf("job not found: %s", "job-missing"), body.Error)
}
