// Package file handles session attachments: upload into blob storage,
// the synthesized system message per file, and asynchronous text
// extraction for documents.
package file

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/zaxchat/zax-backend/internal/model"
)

// Attacher persists a descriptor together with its system message.
type Attacher interface {
	AttachFile(ctx context.Context, file *model.StoredFile) (*model.ChatMessage, error)
}

// FileStore reads and updates stored descriptors.
type FileStore interface {
	GetByID(ctx context.Context, id string) (*model.StoredFile, error)
	SetExtractedText(ctx context.Context, id, text string) error
}

// Upload is one incoming multipart file.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Service stores uploads and feeds the extraction worker.
type Service struct {
	storage  Storage
	attacher Attacher
	files    FileStore
	extractQ chan string
}

// NewService creates the file service. Start must be called to run the
// extraction worker.
func NewService(storage Storage, attacher Attacher, files FileStore) *Service {
	return &Service{
		storage:  storage,
		attacher: attacher,
		files:    files,
		extractQ: make(chan string, 64),
	}
}

// SaveSessionFiles stores each upload, attaches its descriptor to the
// session and queues extractable documents for the worker.
func (s *Service) SaveSessionFiles(ctx context.Context, sessionID string, uploads []*Upload) ([]*model.StoredFile, error) {
	stored := make([]*model.StoredFile, 0, len(uploads))
	for _, up := range uploads {
		path, err := s.storage.Save(ctx, &SaveRequest{
			FileName:    up.FileName,
			ContentType: up.ContentType,
			Size:        up.Size,
			Reader:      up.Reader,
			SessionID:   sessionID,
		})
		if err != nil {
			return nil, err
		}

		sf := &model.StoredFile{
			SessionID:        sessionID,
			OriginalFilename: up.FileName,
			Category:         Categorize(up.ContentType, up.FileName),
			ContentType:      up.ContentType,
			SizeBytes:        up.Size,
			StoragePath:      path,
		}
		if _, err := s.attacher.AttachFile(ctx, sf); err != nil {
			// remove the orphaned blob; the descriptor never committed
			if derr := s.storage.Delete(ctx, path); derr != nil {
				log.Printf("file: failed to clean up %s: %v", path, derr)
			}
			return nil, err
		}
		stored = append(stored, sf)

		if extractable(sf) {
			select {
			case s.extractQ <- sf.ID:
			default:
				log.Printf("file: extraction queue full, skipping %s", sf.ID)
			}
		}
	}
	return stored, nil
}

// Open returns the descriptor and content of a stored file.
func (s *Service) Open(ctx context.Context, id string) (*model.StoredFile, io.ReadCloser, error) {
	sf, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Get(ctx, sf.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return sf, reader, nil
}

// URL resolves a descriptor to its access URL.
func (s *Service) URL(sf *model.StoredFile) string {
	return s.storage.GetURL(sf.StoragePath)
}

// Categorize maps a content type and filename to the file category
// shown to both clients.
func Categorize(contentType, fileName string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return model.FileCategoryImage
	case ct == "application/pdf":
		return model.FileCategoryPDF
	case ct == "application/msword",
		ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return model.FileCategoryDoc
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return model.FileCategoryImage
	case ".pdf":
		return model.FileCategoryPDF
	case ".doc", ".docx":
		return model.FileCategoryDoc
	}
	return model.FileCategoryOther
}

func extractable(sf *model.StoredFile) bool {
	switch sf.Category {
	case model.FileCategoryPDF, model.FileCategoryDoc:
		return true
	}
	return strings.HasPrefix(strings.ToLower(sf.ContentType), "text/")
}
