package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
)

// StaffRepository is the data access for staff console accounts.
type StaffRepository struct {
	db *gorm.DB
}

// NewStaffRepository creates the staff repository.
func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create inserts a staff account.
func (r *StaffRepository) Create(ctx context.Context, staff *model.StaffUser) error {
	if err := r.db.WithContext(ctx).Create(staff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.AlreadyExistsf("staff user %s", staff.Username)
		}
		return fmt.Errorf("failed to create staff user: %w", err)
	}
	return nil
}

// GetByUsername fetches a staff account by login name.
func (r *StaffRepository) GetByUsername(ctx context.Context, username string) (*model.StaffUser, error) {
	var staff model.StaffUser
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&staff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("staff user %s", username)
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return &staff, nil
}

// GetByID fetches a staff account by id.
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*model.StaffUser, error) {
	var staff model.StaffUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&staff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("staff user %s", id)
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return &staff, nil
}

// Count returns the number of staff accounts.
func (r *StaffRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.StaffUser{}).Count(&n).Error
	return n, err
}
