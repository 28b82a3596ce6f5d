package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/service"
)

// FAQHandler serves the widget's quick-question list.
type FAQHandler struct {
	svc *service.Services
}

func NewFAQHandler(svc *service.Services) *FAQHandler {
	return &FAQHandler{svc: svc}
}

// Popular returns the most-hit active FAQ entries.
func (h *FAQHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	faqs, err := h.svc.FAQ.Popular(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{"faqs": faqs})
}

// Hit records that an FAQ entry was used as a quick question.
func (h *FAQHandler) Hit(c *gin.Context) {
	if err := h.svc.FAQ.RecordHit(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	success(c, nil)
}
