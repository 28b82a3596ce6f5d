package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
)

// FileRepository reads and updates stored file descriptors. Creation goes
// through SessionRepository.AttachFile so the descriptor and its system
// message commit together.
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates the file repository.
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// GetByID fetches one descriptor.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.StoredFile, error) {
	var file model.StoredFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("file %s", id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

// ListBySession returns all descriptors for a session, oldest first.
func (r *FileRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.StoredFile, error) {
	var files []*model.StoredFile
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("uploaded_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// SetExtractedText records the asynchronously extracted text and marks
// the file processed.
func (r *FileRepository) SetExtractedText(ctx context.Context, id, text string) error {
	return r.db.WithContext(ctx).Model(&model.StoredFile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"extracted_text": text, "processed": true}).Error
}
