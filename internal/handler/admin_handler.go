package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/middleware"
	"github.com/zaxchat/zax-backend/internal/service"
	"github.com/zaxchat/zax-backend/internal/service/chat"
)

// AdminHandler serves the staff console endpoints.
type AdminHandler struct {
	svc *service.Services
}

func NewAdminHandler(svc *service.Services) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Login exchanges staff credentials for a token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, staff, err := h.svc.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{
		"token": token,
		"staff": gin.H{
			"id":   staff.ID,
			"name": staff.DisplayName,
		},
	})
}

// ActiveSessions is the console's queue poll: every non-closed session,
// most recently active first.
func (h *AdminHandler) ActiveSessions(c *gin.Context) {
	sessions, err := h.svc.Handoff.Queue(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{"sessions": sessions})
}

// Connect assigns the authenticated staff member to a pending session.
// The first connect wins; reconnecting to an own session is a no-op.
func (h *AdminHandler) Connect(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	staffID, staffName := middleware.StaffFromContext(c)
	session, err := h.svc.Handoff.StaffConnect(c.Request.Context(), req.SessionID, staffID, staffName)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{
		"session_id":   session.ID,
		"status":       session.State,
		"staff_member": session.StaffName,
	})
}

// ChatHistory reads a session transcript for the console. since is an
// optional RFC3339 timestamp.
func (h *AdminHandler) ChatHistory(c *gin.Context) {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		badRequest(c, err)
		return
	}

	history, err := h.svc.Chat.GetHistory(c.Request.Context(), c.Param("session_id"), since)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, history)
}

// SendMessage posts a staff reply into the assigned session. A retried
// request carrying the same client_msg_id returns the original message.
func (h *AdminHandler) SendMessage(c *gin.Context) {
	var req struct {
		SessionID   string `json:"session_id" binding:"required"`
		Message     string `json:"message" binding:"required"`
		ClientMsgID string `json:"client_msg_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	staffID, _ := middleware.StaffFromContext(c)
	if staffID == "" {
		badRequest(c, fmt.Errorf("missing staff identity"))
		return
	}

	msg, err := h.svc.Chat.SubmitStaffMessage(c.Request.Context(), &chat.SubmitStaffRequest{
		SessionID:   req.SessionID,
		StaffID:     staffID,
		Message:     req.Message,
		ClientMsgID: req.ClientMsgID,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, msg)
}

// EndSession closes the authenticated staff member's active session.
func (h *AdminHandler) EndSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	staffID, _ := middleware.StaffFromContext(c)
	session, err := h.svc.Handoff.EndSession(c.Request.Context(), req.SessionID, staffID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{
		"session_id": session.ID,
		"status":     session.State,
	})
}
