package entity

import (
	"strings"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
)

// NewItemPrefix marks item selections the user added on top of the detected
// set; such items must carry their own bounding box.
const NewItemPrefix = "new-"

// IdentificationPending is the status of an identification awaiting the
// phase-2 run call.
const IdentificationPending = "awaiting_confirmation"

// BoundingBox delimits a rectangular image region in pixels from top-left.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageDimensions are the pixel dimensions of the analysed image.
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedItem is a visual element the vision model found in an image.
type DetectedItem struct {
	ItemID      string                `json:"item_id"`
	Type        constants.ElementType `json:"type"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description"`
	DataPreview string                `json:"data_preview"`
	BBox        BoundingBox           `json:"bbox"`
	Confidence  float64               `json:"confidence"`
	Warnings    []string              `json:"warnings"`
}

// Identification is the persisted phase-1 result: detected elements awaiting
// user confirmation. It expires ExpiresAt; expiry is checked lazily when the
// record is next read, never by a background sweep.
type Identification struct {
	ID              string          `json:"identification_id"`
	FileID          string          `json:"file_id"`
	Page            *int            `json:"page,omitempty"`
	ImageDimensions ImageDimensions `json:"image_dimensions"`
	DetectedItems   []DetectedItem  `json:"detected_items"`
	ImagePath       string          `json:"image_path"`
	Status          string          `json:"status"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (i *Identification) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// ItemSelection is the user's confirmation (or addition) of an item to
// extract. For pre-existing items, title and type may override the detected
// values; the bounding box always comes from the stored detection. For
// user-added items ("new-" prefix) the bounding box is mandatory.
type ItemSelection struct {
	ItemID string                `json:"item_id"`
	Title  string                `json:"title,omitempty"`
	Type   constants.ElementType `json:"type,omitempty"`
	BBox   *BoundingBox          `json:"bbox,omitempty"`
}

// UserAdded reports whether this selection was added by the user rather than
// detected in phase 1.
func (s ItemSelection) UserAdded() bool {
	return strings.HasPrefix(s.ItemID, NewItemPrefix)
}

// ExtractionOptions control the phase-2 run.
type ExtractionOptions struct {
	MergeDatasets  bool                  `json:"merge_datasets"`
	OutputLanguage string                `json:"output_language"`
	Granularity    constants.Granularity `json:"granularity"`
}

// ExtractedTable is one table the vision model produced for one element,
// before being wrapped into a persisted Dataset.
type ExtractedTable struct {
	DatasetID    string                `json:"dataset_id"`
	SourceItemID string                `json:"source_item_id"`
	Title        string                `json:"title"`
	Type         constants.ElementType `json:"type"`
	Columns      []string              `json:"columns"`
	Rows         []Row                 `json:"rows"`
	SourceBBox   *BoundingBox          `json:"source_bbox,omitempty"`
	Confidence   float64               `json:"confidence"`
	Notes        string                `json:"notes,omitempty"`
}
