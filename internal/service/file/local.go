package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage stores attachments on the local filesystem under
// {basePath}/{sessionID}/{uuid}{ext}.
type LocalStorage struct {
	basePath  string
	urlPrefix string
}

// NewLocalStorage creates the local storage backend.
func NewLocalStorage(basePath, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save writes the file to disk.
func (s *LocalStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	ext := filepath.Ext(req.FileName)
	fileID := uuid.New().String()
	relativePath := fmt.Sprintf("%s/%s%s", req.SessionID, fileID, ext)
	fullPath := filepath.Join(s.basePath, relativePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, req.Reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return relativePath, nil
}

// Get opens the file content.
func (s *LocalStorage) Get(ctx context.Context, filePath string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the file; a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, filePath string) error {
	if err := os.Remove(filepath.Join(s.basePath, filePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL returns the access URL for a storage path.
func (s *LocalStorage) GetURL(filePath string) string {
	return fmt.Sprintf("%s/%s", s.urlPrefix, filePath)
}
