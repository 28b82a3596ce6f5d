// Package faq serves the static help content: the popular-questions
// panel and the related-questions suggestions attached to bot replies.
package faq

import (
	"context"
	"fmt"
	"strings"

	"github.com/zaxchat/zax-backend/internal/model"
	"github.com/zaxchat/zax-backend/internal/repository"
)

// Service looks up FAQ content.
type Service struct {
	repo *repository.FAQRepository
}

// NewService creates the FAQ service.
func NewService(repo *repository.FAQRepository) *Service {
	return &Service{repo: repo}
}

// Popular lists the most used active FAQs.
func (s *Service) Popular(ctx context.Context, limit int) ([]*model.FAQ, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	faqs, err := s.repo.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	return faqs, nil
}

// Suggest finds FAQs related to a user question by keyword match.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]*model.FAQ, error) {
	if limit <= 0 {
		limit = 3
	}
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return []*model.FAQ{}, nil
	}
	return s.repo.Search(ctx, keywords, limit)
}

// RecordHit bumps a FAQ's usage counter when the user picks it.
func (s *Service) RecordHit(ctx context.Context, id string) error {
	return s.repo.IncrementHitCount(ctx, id)
}

// stopwords excluded from keyword matching.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true,
	"do": true, "for": true, "how": true, "i": true, "in": true,
	"is": true, "my": true, "of": true, "the": true, "to": true,
	"what": true, "when": true, "where": true, "you": true,
}

func extractKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) < 3 || stopwords[f] {
			continue
		}
		keywords = append(keywords, f)
	}
	return keywords
}
