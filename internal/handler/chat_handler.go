package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/service"
	"github.com/zaxchat/zax-backend/internal/service/chat"
	"github.com/zaxchat/zax-backend/internal/service/file"
)

// ChatHandler serves the public widget endpoints.
type ChatHandler struct {
	svc *service.Services
}

func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat accepts a user message and returns the routing outcome. While
// the session is bot-served the outcome carries the automated reply;
// afterwards the message is persisted for the staff console poller.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chat.SubmitUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Chat.SubmitUserMessage(c.Request.Context(), &req)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, result)
}

// RequestAssistance moves the session into the staff queue.
func (h *ChatHandler) RequestAssistance(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		UserID    string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.svc.Handoff.RequestAssistance(c.Request.Context(), req.SessionID, req.UserID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, gin.H{
		"session_id": session.ID,
		"status":     session.State,
	})
}

// SessionStatus is the widget's status poll.
func (h *ChatHandler) SessionStatus(c *gin.Context) {
	status, err := h.svc.Chat.GetStatus(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, status)
}

// ChatHistory is the widget's message poll. since is an optional
// RFC3339 timestamp; messages at or after it are returned.
func (h *ChatHandler) ChatHistory(c *gin.Context) {
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

// Upload stores the multipart files and attaches them to the session.
func (h *ChatHandler) Upload(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		badRequest(c, fmt.Errorf("session_id is required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, fmt.Errorf("no files provided"))
		return
	}

	uploads := make([]*file.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()
		uploads = append(uploads, &file.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}

	stored, err := h.svc.File.SaveSessionFiles(c.Request.Context(), sessionID, uploads)
	if err != nil {
		errorResponse(c, err)
		return
	}
	created(c, gin.H{"files": stored})
}

// GetFile streams a stored attachment back to the client.
func (h *ChatHandler) GetFile(c *gin.Context) {
	sf, reader, err := h.svc.File.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, sf.SizeBytes, sf.ContentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", sf.OriginalFilename),
	})
}

func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since timestamp: %w", err)
	}
	return since, nil
}
