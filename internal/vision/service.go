// Package vision implements the two-phase vision extraction flow: identify
// visual elements on a page image, then extract structured data from the
// elements the user confirmed. The model itself is an opaque collaborator;
// this package owns prompt selection, response validation and the expiring
// identification state between the two phases.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/repository"
)

// Renderer is the slice of the PDF provider this service needs: rasterize a
// page for the model to look at.
type Renderer interface {
	Render(path string, page int, scale float64, format string) ([]byte, string, error)
}

// Config holds the vision flow tunables.
type Config struct {
	IdentifyTTL time.Duration
	RenderScale float64
	MaxTokens   int
}

// Service drives the identify/run protocol.
type Service struct {
	idents   repository.IdentificationRepository
	datasets repository.DatasetRepository
	files    *repository.FileStore
	renderer Renderer
	model    Inferencer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	idents repository.IdentificationRepository,
	datasets repository.DatasetRepository,
	files *repository.FileStore,
	renderer Renderer,
	model Inferencer,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.IdentifyTTL <= 0 {
		cfg.IdentifyTTL = time.Hour
	}
	if cfg.RenderScale <= 0 {
		cfg.RenderScale = 2.0
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		idents:   idents,
		datasets: datasets,
		files:    files,
		renderer: renderer,
		model:    model,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Identify runs phase 1: render (or reuse) the source image, ask the model
// for the visual elements it contains, and persist the result under a fresh
// identification id with a TTL.
func (s *Service) Identify(ctx context.Context, fileID string, page *int) (*entity.Identification, error) {
	if !s.model.Configured() {
		return nil, common.NewError(common.KindUnsupported, "vision model not configured, set OPENAI_API_KEY")
	}

	meta, err := s.files.Metadata(fileID)
	if err != nil {
		return nil, err
	}
	filePath, err := s.files.Path(fileID)
	if err != nil {
		return nil, err
	}

	identID := common.ShortID("ident")
	imagePath := filePath
	if meta.MIMEType == constants.MIMEPDF {
		if page == nil {
			return nil, common.NewError(common.KindInvalidInput, "page number required for PDF files")
		}
		if meta.Pages != nil && (*page < 1 || *page > *meta.Pages) {
			return nil, common.Errorf(common.KindInvalidInput, "page %d out of range (1-%d)", *page, *meta.Pages)
		}
		imageBytes, _, err := s.renderer.Render(filePath, *page, s.cfg.RenderScale, "png")
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", *page, err)
		}
		imagePath = s.files.IdentificationImagePath(fileID, identID)
		if err := os.WriteFile(imagePath, imageBytes, 0o644); err != nil {
			return nil, fmt.Errorf("write identification image: %w", err)
		}
	}

	start := s.now()
	content, err := s.model.Infer(ctx, imagePath, identificationPrompt, 4096)
	if err != nil {
		return nil, err
	}

	items, dims, err := parseIdentifyResponse(content)
	if err != nil {
		return nil, err
	}

	ident := &entity.Identification{
		ID:              identID,
		FileID:          fileID,
		Page:            page,
		ImageDimensions: dims,
		DetectedItems:   items,
		ImagePath:       imagePath,
		Status:          entity.IdentificationPending,
		ExpiresAt:       s.now().Add(s.cfg.IdentifyTTL),
		CreatedAt:       start,
	}
	if err := s.idents.Put(ctx, ident); err != nil {
		return nil, fmt.Errorf("persist identification %s: %w", identID, err)
	}

	s.logger.Info("vision.identify.ok",
		"identification_id", identID,
		"file_id", fileID,
		"items", len(items),
		"elapsed_ms", s.now().Sub(start).Milliseconds())
	return ident, nil
}

// Identification fetches a stored identification, rejecting expired records.
// Expiry is checked here, at read time; nothing sweeps stale records.
func (s *Service) Identification(ctx context.Context, id string) (*entity.Identification, error) {
	ident, err := s.idents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Expired(s.now()) {
		return nil, common.NewError(common.KindExpired, "identification expired, please re-identify")
	}
	return ident, nil
}

// promptItem is one element description handed to the extraction prompt.
type promptItem struct {
	ItemID string              `json:"item_id"`
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	BBox   *entity.BoundingBox `json:"bbox"`
}

// Run executes phase 2: resolve the user's selections against the stored
// detections, ask the model for structured data, validate the response shape
// for the requested granularity, and persist one dataset per element (or a
// single merged dataset).
func (s *Service) Run(ctx context.Context, identificationID string, items []entity.ItemSelection, opts entity.ExtractionOptions) ([]*entity.Dataset, error) {
	if !s.model.Configured() {
		return nil, common.NewError(common.KindUnsupported, "vision model not configured, set OPENAI_API_KEY")
	}

	ident, err := s.Identification(ctx, identificationID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.UserAdded() && item.BBox == nil {
			return nil, common.Errorf(common.KindInvalidInput, "user-added item %s requires bbox", item.ItemID)
		}
	}
	if _, err := os.Stat(ident.ImagePath); err != nil {
		return nil, common.NewError(common.KindInternal, "identification image no longer available")
	}

	granularity, ok := constants.ParseGranularity(string(opts.Granularity))
	if !ok {
		return nil, common.Errorf(common.KindInvalidInput, "unsupported granularity: %s", opts.Granularity)
	}

	stored := make(map[string]entity.DetectedItem, len(ident.DetectedItems))
	for _, it := range ident.DetectedItems {
		stored[it.ItemID] = it
	}

	promptItems := resolveSelections(items, stored)
	if len(promptItems) == 0 {
		return nil, common.NewError(common.KindInvalidInput, "no valid items selected")
	}
	itemsJSON, err := json.MarshalIndent(promptItems, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal prompt items: %w", err)
	}

	start := s.now()
	content, err := s.model.Infer(ctx, ident.ImagePath, extractionPrompt(granularity, string(itemsJSON)), s.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	tables, err := parseExtractionResponse(content, granularity, promptItems, stored)
	if err != nil {
		return nil, err
	}

	if opts.MergeDatasets && len(tables) > 1 {
		tables = []entity.ExtractedTable{mergeTables(tables)}
	}

	page := 1
	if ident.Page != nil {
		page = *ident.Page
	}
	now := s.now()
	datasets := make([]*entity.Dataset, 0, len(tables))
	for _, table := range tables {
		confidence := table.Confidence
		ds := &entity.Dataset{
			ID:           table.DatasetID,
			JobID:        "job-vision-" + table.DatasetID,
			FileID:       ident.FileID,
			Page:         page,
			StrategyUsed: constants.StrategyVisionLLM,
			CreatedAt:    now,
			UpdatedAt:    now,
			Columns:      table.Columns,
			Rows:         table.Rows,
			Confidence:   &confidence,
			EditHistory:  []entity.EditHistoryEntry{},
		}
		if err := s.datasets.Put(ctx, ds); err != nil {
			return nil, fmt.Errorf("persist dataset %s: %w", ds.ID, err)
		}
		datasets = append(datasets, ds)
	}

	s.logger.Info("vision.run.ok",
		"identification_id", identificationID,
		"granularity", string(granularity),
		"datasets", len(datasets),
		"elapsed_ms", s.now().Sub(start).Milliseconds())
	return datasets, nil
}

// resolveSelections merges user selections with the stored detections.
// Existing items keep their detected bounding box unconditionally; title and
// type may be overridden. Unknown existing ids are dropped.
func resolveSelections(items []entity.ItemSelection, stored map[string]entity.DetectedItem) []promptItem {
	out := make([]promptItem, 0, len(items))
	for _, sel := range items {
		if sel.UserAdded() {
			typ := string(sel.Type)
			if typ == "" {
				typ = string(constants.ElementOther)
			}
			title := sel.Title
			if title == "" {
				title = "User-specified element"
			}
			out = append(out, promptItem{
				ItemID: sel.ItemID,
				Type:   typ,
				Title:  title,
				BBox:   sel.BBox,
			})
			continue
		}

		original, ok := stored[sel.ItemID]
		if !ok {
			continue
		}
		typ := string(original.Type)
		if sel.Type != "" {
			typ = string(sel.Type)
		}
		title := sel.Title
		if title == "" {
			title = original.Title
		}
		if title == "" {
			title = "Untitled"
		}
		bbox := original.BBox
		out = append(out, promptItem{
			ItemID: sel.ItemID,
			Type:   typ,
			Title:  title,
			BBox:   &bbox,
		})
	}
	return out
}

func parseIdentifyResponse(content string) ([]entity.DetectedItem, entity.ImageDimensions, error) {
	payload := []byte(StripCodeFences(content))

	var resp struct {
		DetectedItems []struct {
			Type        string   `json:"type"`
			Title       string   `json:"title"`
			Description string   `json:"description"`
			DataPreview string   `json:"data_preview"`
			BBox        struct {
				X      float64 `json:"x"`
				Y      float64 `json:"y"`
				Width  float64 `json:"width"`
				Height float64 `json:"height"`
			} `json:"bbox"`
			Confidence *float64 `json:"confidence"`
			Warnings   []string `json:"warnings"`
		} `json:"detected_items"`
		ImageWidth  float64 `json:"image_width"`
		ImageHeight float64 `json:"image_height"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, entity.ImageDimensions{}, common.WrapError(common.KindRemote, err, "vision model returned malformed JSON")
	}
	if err := validateAgainstSchema(identificationSchema(), payload); err != nil {
		return nil, entity.ImageDimensions{}, common.WrapError(common.KindRemote, err, "identification response failed validation")
	}

	items := make([]entity.DetectedItem, 0, len(resp.DetectedItems))
	for i, raw := range resp.DetectedItems {
		confidence := 0.5
		if raw.Confidence != nil {
			confidence = *raw.Confidence
		}
		width := int(raw.BBox.Width)
		if width == 0 {
			width = 100
		}
		height := int(raw.BBox.Height)
		if height == 0 {
			height = 100
		}
		warnings := raw.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		items = append(items, entity.DetectedItem{
			ItemID:      fmt.Sprintf("item-%d", i+1),
			Type:        constants.ParseElementType(raw.Type),
			Title:       raw.Title,
			Description: raw.Description,
			DataPreview: raw.DataPreview,
			BBox: entity.BoundingBox{
				X:      int(raw.BBox.X),
				Y:      int(raw.BBox.Y),
				Width:  width,
				Height: height,
			},
			Confidence: confidence,
			Warnings:   warnings,
		})
	}

	dims := entity.ImageDimensions{
		Width:  int(resp.ImageWidth),
		Height: int(resp.ImageHeight),
	}
	if dims.Width == 0 {
		dims.Width = 1000
	}
	if dims.Height == 0 {
		dims.Height = 800
	}
	return items, dims, nil
}

func parseExtractionResponse(
	content string,
	granularity constants.Granularity,
	promptItems []promptItem,
	stored map[string]entity.DetectedItem,
) ([]entity.ExtractedTable, error) {
	payload := []byte(StripCodeFences(content))

	var resp struct {
		Extractions []struct {
			ItemID     string           `json:"item_id"`
			Title      string           `json:"title"`
			Columns    []string         `json:"columns"`
			Rows       []map[string]any `json:"rows"`
			Confidence *float64         `json:"confidence"`
			Notes      string           `json:"notes"`
		} `json:"extractions"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, common.WrapError(common.KindRemote, err, "vision model returned malformed JSON")
	}
	if err := validateAgainstSchema(extractionSchema(granularity), payload); err != nil {
		return nil, common.WrapError(common.KindRemote, err, "extraction response failed validation")
	}

	byID := make(map[string]promptItem, len(promptItems))
	for _, item := range promptItems {
		byID[item.ItemID] = item
	}

	tables := make([]entity.ExtractedTable, 0, len(resp.Extractions))
	for _, raw := range resp.Extractions {
		info := byID[raw.ItemID]

		var sourceBBox *entity.BoundingBox
		if original, ok := stored[raw.ItemID]; ok {
			bbox := original.BBox
			sourceBBox = &bbox
		}

		// Every row gets a synthetic position-based id; anything the model
		// emitted under row_id is discarded.
		rows := make([]entity.Row, 0, len(raw.Rows))
		for i, rawRow := range raw.Rows {
			row := entity.NewRow(i + 1)
			for k, v := range rawRow {
				if k == "row_id" {
					continue
				}
				row.Set(k, v)
			}
			rows = append(rows, row)
		}

		title := raw.Title
		if title == "" {
			title = info.Title
		}
		if title == "" {
			title = "Untitled"
		}
		confidence := 0.8
		if raw.Confidence != nil {
			confidence = *raw.Confidence
		}

		tables = append(tables, entity.ExtractedTable{
			DatasetID:    common.ShortID("ds"),
			SourceItemID: raw.ItemID,
			Title:        title,
			Type:         constants.ParseElementType(info.Type),
			Columns:      raw.Columns,
			Rows:         rows,
			SourceBBox:   sourceBBox,
			Confidence:   confidence,
			Notes:        raw.Notes,
		})
	}
	return tables, nil
}

// mergeTables concatenates per-element tables into one, with Source and
// Category lead columns naming the originating element, and the mean of the
// per-table confidences.
func mergeTables(tables []entity.ExtractedTable) entity.ExtractedTable {
	columns := []string{"Source", "Category"}
	seen := map[string]bool{"Source": true, "Category": true}
	for _, t := range tables {
		for _, col := range t.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	var rows []entity.Row
	var sourceIDs string
	var confidenceSum float64
	for i, t := range tables {
		if i > 0 {
			sourceIDs += ","
		}
		sourceIDs += t.SourceItemID
		confidenceSum += t.Confidence
		for _, r := range t.Rows {
			merged := entity.NewRow(len(rows) + 1)
			merged.Set("Source", t.SourceItemID)
			merged.Set("Category", t.Title)
			for k, v := range r.Fields {
				merged.Set(k, v)
			}
			rows = append(rows, merged)
		}
	}

	return entity.ExtractedTable{
		DatasetID:    common.ShortID("ds"),
		SourceItemID: sourceIDs,
		Title:        "Merged extraction",
		Type:         constants.ElementOther,
		Columns:      columns,
		Rows:         rows,
		Confidence:   confidenceSum / float64(len(tables)),
		Notes:        fmt.Sprintf("Merged from %d datasets", len(tables)),
	}
}
