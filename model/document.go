package model

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Document represents a regional source report
type Document struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	Region    Region    `json:"region"`
	Content   string    `json:"content,omitempty" db:"-"` // only used during ingestion
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocumentFromFile reads a report file. The title defaults to the file name
// without extension and the region is detected from the name or the content.
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	doc := &Document{
		Title:    title,
		Source:   filePath,
		Content:  string(content),
		Metadata: metadata,
	}
	if region, ok := DetectRegion(filename, doc.Content); ok {
		doc.Region = region
	}
	return doc, nil
}
