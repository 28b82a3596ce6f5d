package file

import (
	"context"
	"io"
)

// Storage is the attachment blob store.
type Storage interface {
	// Save stores the file and returns its storage path.
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get opens the file content.
	Get(ctx context.Context, filePath string) (io.ReadCloser, error)
	// Delete removes the file.
	Delete(ctx context.Context, filePath string) error
	// GetURL returns the access URL for a storage path.
	GetURL(filePath string) string
}

// SaveRequest is one file to store.
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	SessionID   string
}
