// Package export packages a dataset into a downloadable ZIP with the data in
// one or more formats plus a provenance manifest.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/repository"
)

// SourceFilterAll keeps every row; "annotated" and "estimated" keep only rows
// whose source tag matches and drop the source column from the output.
const SourceFilterAll = "all"

// Request selects what goes into the ZIP.
type Request struct {
	DatasetID    string
	Formats      []string // any of csv, json, xlsx; manifest is always included
	SourceFilter string   // all, annotated or estimated
}

// Service builds export packages.
type Service struct {
	datasets repository.DatasetRepository
	files    *repository.FileStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(datasets repository.DatasetRepository, files *repository.FileStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		datasets: datasets,
		files:    files,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BuildZIP assembles the export package in memory and returns the ZIP bytes.
func (s *Service) BuildZIP(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()

	filter := req.SourceFilter
	if filter == "" {
		filter = SourceFilterAll
	}
	if filter != SourceFilterAll && filter != "annotated" && filter != "estimated" {
		return nil, common.Errorf(common.KindInvalidInput, "unsupported source filter: %s", filter)
	}

	ds, err := s.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	filename := "unknown"
	if meta, err := s.files.Metadata(ds.FileID); err == nil {
		filename = meta.Filename
	}

	columns, rows := filterRows(ds, filter)

	formats := req.Formats
	if len(formats) == 0 {
		formats = []string{"csv", "json"}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, format := range formats {
		switch format {
		case "csv":
			content, err := generateCSV(columns, rows)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(zw, "data.csv", content); err != nil {
				return nil, err
			}
		case "json":
			content, err := generateJSON(rows)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(zw, "data.json", content); err != nil {
				return nil, err
			}
		case "xlsx":
			content, err := generateXLSX(columns, rows)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(zw, "data.xlsx", content); err != nil {
				return nil, err
			}
		default:
			return nil, common.Errorf(common.KindInvalidInput, "unsupported export format: %s", format)
		}
	}

	manifest := buildManifest(ds, filename, columns, len(rows), s.now())
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeZipEntry(zw, "manifest.json", manifestJSON); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}

	s.logger.Info("export.zip.ok",
		"dataset_id", req.DatasetID,
		"formats", formats,
		"source_filter", filter,
		"rows", len(rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// filterRows applies the source filter. A non-all filter keeps matching rows
// and removes the source column from the reported column set.
func filterRows(ds *entity.Dataset, filter string) ([]string, []entity.Row) {
	if filter == SourceFilterAll {
		return ds.Columns, ds.Rows
	}
	columns := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		if c != "source" {
			columns = append(columns, c)
		}
	}
	rows := make([]entity.Row, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		if r.Fields["source"] == filter {
			rows = append(rows, r)
		}
	}
	return columns, rows
}

func writeZipEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func generateCSV(columns []string, rows []entity.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = cellString(row.Fields[col])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// generateJSON emits the rows as plain objects without the row_id and
// source bookkeeping keys.
func generateJSON(rows []entity.Row) ([]byte, error) {
	clean := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(row.Fields))
		for k, v := range row.Fields {
			if k == "source" {
				continue
			}
			obj[k] = v
		}
		clean = append(clean, obj)
	}
	return json.MarshalIndent(clean, "", "  ")
}

func generateXLSX(columns []string, rows []entity.Row) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Data"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}
	for r, row := range rows {
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, row.Fields[col])
		}
	}
	if len(columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(columns))
		_ = f.SetColWidth(sheet, "A", last, 18)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
