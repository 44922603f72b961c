package entity

import "time"

// FileMetadata describes an uploaded source file.
type FileMetadata struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MIMEType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Pages     *int      `json:"pages,omitempty"` // PDF only
	CreatedAt time.Time `json:"created_at"`
}

// PageInfo describes a single PDF page.
type PageInfo struct {
	Page    int     `json:"page"` // 1-indexed
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	HasText bool    `json:"has_text"`
}
