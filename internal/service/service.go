// Package service wires the business services on top of the
// repository layer.
package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zaxchat/zax-backend/internal/config"
	"github.com/zaxchat/zax-backend/internal/repository"
	"github.com/zaxchat/zax-backend/internal/service/auth"
	"github.com/zaxchat/zax-backend/internal/service/chat"
	"github.com/zaxchat/zax-backend/internal/service/faq"
	"github.com/zaxchat/zax-backend/internal/service/file"
	"github.com/zaxchat/zax-backend/internal/service/handoff"
	"github.com/zaxchat/zax-backend/internal/service/responder"
)

// Services aggregates the application services.
type Services struct {
	Chat    *chat.Service
	Handoff *handoff.Service
	FAQ     *faq.Service
	File    *file.Service
	Auth    *auth.Service
}

// NewServices builds the service graph. A nil redisClient switches the
// idempotency store to its in-memory fallback; a responder that fails
// to initialize degrades the chat service to fallback replies instead
// of failing startup.
func NewServices(ctx context.Context, repos *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	idemTTL := time.Duration(cfg.Chat.IdempotencyTTLSeconds) * time.Second
	var idem chat.Idempotency
	if redisClient != nil {
		idem = chat.NewRedisIdempotency(redisClient, idemTTL)
	} else {
		idem = chat.NewMemoryIdempotency(idemTTL)
	}

	var rsp chat.Responder
	if r, err := responder.New(ctx, cfg); err != nil {
		log.Printf("Warning: responder unavailable, serving fallback replies: %v", err)
	} else {
		rsp = r
	}

	storage, err := file.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.URLPrefix)
	if err != nil {
		return nil, err
	}

	faqSvc := faq.NewService(repos.FAQ)
	chatSvc := chat.NewService(repos.Session, repos.File, rsp, faqSvc, idem)
	handoffSvc := handoff.NewService(repos.Session,
		time.Duration(cfg.Chat.SessionIdleMinutes)*time.Minute,
		time.Duration(cfg.Chat.SweepIntervalSeconds)*time.Second)
	fileSvc := file.NewService(storage, repos.Session, repos.File)

	authSvc := auth.NewService(repos.Staff, &cfg.Auth)
	if err := authSvc.Seed(ctx, &cfg.Auth); err != nil {
		return nil, err
	}

	return &Services{
		Chat:    chatSvc,
		Handoff: handoffSvc,
		FAQ:     faqSvc,
		File:    fileSvc,
		Auth:    authSvc,
	}, nil
}

// Start launches the background workers: the idle-session sweeper and
// the document extraction worker. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	go s.Handoff.Run(ctx)
	go s.File.Run(ctx)
}
