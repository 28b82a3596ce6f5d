package handler

import (
	"github.com/zaxchat/zax-backend/internal/service"
)

// Handlers aggregates the HTTP handlers.
type Handlers struct {
	Chat  *ChatHandler
	Admin *AdminHandler
	FAQ   *FAQHandler
}

// NewHandlers creates all handlers.
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Chat:  NewChatHandler(svc),
		Admin: NewAdminHandler(svc),
		FAQ:   NewFAQHandler(svc),
	}
}
