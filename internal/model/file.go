package model

import "time"

// File categories surfaced to both clients.
const (
	FileCategoryImage = "image"
	FileCategoryPDF   = "pdf"
	FileCategoryDoc   = "doc"
	FileCategoryOther = "other"
)

// StoredFile is the descriptor of an uploaded attachment. ExtractedText
// is populated asynchronously and may be empty at read time.
type StoredFile struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID        string    `gorm:"index;size:64" json:"session_id"`
	OriginalFilename string    `gorm:"size:255" json:"original_filename"`
	Category         string    `gorm:"size:20" json:"file_type"` // image, pdf, doc, other
	ContentType      string    `gorm:"size:100" json:"content_type"`
	SizeBytes        int64     `json:"file_size"`
	StoragePath      string    `gorm:"size:512" json:"file_path"`
	ExtractedText    string    `gorm:"type:text" json:"processed_content,omitempty"`
	Processed        bool      `gorm:"default:false" json:"processed"`
	UploadedAt       time.Time `gorm:"autoCreateTime" json:"upload_time"`
}

func (StoredFile) TableName() string {
	return "stored_files"
}
