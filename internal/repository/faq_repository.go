package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/zaxchat/zax-backend/internal/model"
)

// FAQRepository is the data access for the static FAQ content.
type FAQRepository struct {
	db *gorm.DB
}

// NewFAQRepository creates the FAQ repository.
func NewFAQRepository(db *gorm.DB) *FAQRepository {
	return &FAQRepository{db: db}
}

// Create inserts a FAQ entry.
func (r *FAQRepository) Create(ctx context.Context, faq *model.FAQ) error {
	return r.db.WithContext(ctx).Create(faq).Error
}

// ListActive lists active FAQs, highest priority and hit count first.
func (r *FAQRepository) ListActive(ctx context.Context, limit int) ([]*model.FAQ, error) {
	var faqs []*model.FAQ
	query := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC, hit_count DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&faqs).Error
	return faqs, err
}

// Search matches active FAQs whose question or answer contains any of the
// given keywords.
func (r *FAQRepository) Search(ctx context.Context, keywords []string, limit int) ([]*model.FAQ, error) {
	if len(keywords) == 0 {
		return []*model.FAQ{}, nil
	}

	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	var clauses []string
	var args []interface{}
	for _, kw := range keywords {
		clauses = append(clauses, "(question ILIKE ? OR answer ILIKE ?)")
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}
	query = query.Where(strings.Join(clauses, " OR "), args...)

	var faqs []*model.FAQ
	err := query.Order("priority DESC, hit_count DESC").Limit(limit).Find(&faqs).Error
	return faqs, err
}

// IncrementHitCount bumps the usage counter of a FAQ.
func (r *FAQRepository) IncrementHitCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.FAQ{}).Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1)).Error
}
