// Package chat routes inbound messages: bot-state messages go to the
// automated responder, pending and active messages are persisted for the
// other side's poller to pick up.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
)

// FallbackReply is shown when the responder is unavailable. Responder
// failures are never surfaced to the user as hard errors.
const FallbackReply = "I'm sorry, I'm experiencing technical difficulties. Please try again later."

// Store is the slice of the session store the router needs.
type Store interface {
	CreateSession(ctx context.Context, id, userID string) (*model.ChatSession, error)
	GetSession(ctx context.Context, id string) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID string, since time.Time) ([]*model.ChatMessage, error)
}

// FileLister exposes a session's attachments for history reads.
type FileLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]*model.StoredFile, error)
}

// Reply is the responder's answer with its structured tags.
type Reply struct {
	Text         string   `json:"reply"`
	IsZRARelated bool     `json:"is_zra_related"`
	NeedsSupport bool     `json:"needs_support"`
	FollowUps    []string `json:"follow_ups"`
}

// Responder is the external answer generator, consumed as an opaque
// capability.
type Responder interface {
	Ask(ctx context.Context, sessionID, message string) (*Reply, error)
}

// FAQSuggester surfaces related FAQ entries for a user question.
type FAQSuggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]*model.FAQ, error)
}

// Service is the message router.
type Service struct {
	store     Store
	files     FileLister
	responder Responder
	faqs      FAQSuggester
	idem      Idempotency
}

// NewService creates the router. responder, faqs and idem may be nil in
// reduced deployments; nil idem disables retry de-duplication.
func NewService(store Store, files FileLister, responder Responder, faqs FAQSuggester, idem Idempotency) *Service {
	return &Service{store: store, files: files, responder: responder, faqs: faqs, idem: idem}
}

// SubmitUserRequest is one inbound user message.
type SubmitUserRequest struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Message     string `json:"message" binding:"required"`
	ClientMsgID string `json:"client_msg_id"`
}

// SubmitResult is the routing outcome returned to the widget.
type SubmitResult struct {
	SessionID     string             `json:"session_id"`
	Status        model.SessionState `json:"status"`
	UserMessage   *model.ChatMessage `json:"user_message"`
	Reply         *model.ChatMessage `json:"reply,omitempty"`
	IsZRARelated  bool               `json:"is_zra_related"`
	NeedsSupport  bool               `json:"needs_support"`
	FollowUps     []string           `json:"follow_ups,omitempty"`
	SuggestedFAQs []*model.FAQ       `json:"suggested_faqs,omitempty"`
}

// SubmitUserMessage appends the user's message and, while the session is
// bot-served, obtains and appends the automated reply. In pending or
// active the message is persisted only; the staff poller delivers it.
// Retries carrying the same client message id return the original result
// instead of producing a second reply.
func (s *Service) SubmitUserMessage(ctx context.Context, req *SubmitUserRequest) (*SubmitResult, error) {
	sessionID := req.SessionID
	if sessionID == "" || sessionID == "anonymous" {
		sessionID = uuid.New().String()
	}

	idemKey := ""
	if req.ClientMsgID != "" && s.idem != nil {
		idemKey = sessionID + ":" + req.ClientMsgID
		if payload, ok, err := s.idem.Lookup(ctx, idemKey); err != nil {
			log.Printf("chat: idempotency lookup failed: %v", err)
		} else if ok {
			var cached SubmitResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		session, err = s.store.CreateSession(ctx, sessionID, req.UserID)
	}
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AppendMessage(ctx, &model.ChatMessage{
		SessionID:  sessionID,
		SenderType: model.SenderUser,
		SenderID:   session.UserID,
		Body:       req.Message,
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		SessionID:   sessionID,
		Status:      session.State,
		UserMessage: userMsg,
	}

	if session.State == model.StateBot {
		if err := s.answer(ctx, sessionID, req.Message, result); err != nil {
			return nil, err
		}
	}

	if idemKey != "" {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.idem.Save(ctx, idemKey, payload); err != nil {
				log.Printf("chat: idempotency save failed: %v", err)
			}
		}
	}
	return result, nil
}

// answer calls the responder and appends its reply, falling back to the
// fixed apology on failure. Only persistence errors propagate.
func (s *Service) answer(ctx context.Context, sessionID, question string, result *SubmitResult) error {
	if s.responder == nil {
		return s.appendFallback(ctx, sessionID, result)
	}

	reply, err := s.responder.Ask(ctx, sessionID, question)
	if err != nil {
		log.Printf("chat: responder failed for session %s: %v", sessionID, err)
		return s.appendFallback(ctx, sessionID, result)
	}

	botMsg, err := s.store.AppendMessage(ctx, &model.ChatMessage{
		SessionID:  sessionID,
		SenderType: model.SenderBot,
		SenderID:   "bot",
		Body:       reply.Text,
	})
	if err != nil {
		return err
	}

	result.Reply = botMsg
	result.IsZRARelated = reply.IsZRARelated
	result.NeedsSupport = reply.NeedsSupport
	result.FollowUps = reply.FollowUps

	if s.faqs != nil {
		faqs, err := s.faqs.Suggest(ctx, question, 3)
		if err != nil {
			log.Printf("chat: faq suggestion failed: %v", err)
		} else {
			result.SuggestedFAQs = faqs
		}
	}
	return nil
}

func (s *Service) appendFallback(ctx context.Context, sessionID string, result *SubmitResult) error {
	botMsg, err := s.store.AppendMessage(ctx, &model.ChatMessage{
		SessionID:  sessionID,
		SenderType: model.SenderBot,
		SenderID:   "bot",
		Body:       FallbackReply,
		IsError:    true,
	})
	if err != nil {
		return err
	}
	result.Reply = botMsg
	return nil
}

// SubmitStaffRequest is one staff reply from the console.
type SubmitStaffRequest struct {
	SessionID   string
	StaffID     string
	Message     string
	ClientMsgID string
}

// SubmitStaffMessage appends a staff message to the session the staff
// member is assigned to. Like the user path, a retry carrying the same
// client message id returns the originally stored message instead of
// appending a second one.
func (s *Service) SubmitStaffMessage(ctx context.Context, req *SubmitStaffRequest) (*model.ChatMessage, error) {
	idemKey := ""
	if req.ClientMsgID != "" && s.idem != nil {
		idemKey = req.SessionID + ":staff:" + req.ClientMsgID
		if payload, ok, err := s.idem.Lookup(ctx, idemKey); err != nil {
			log.Printf("chat: idempotency lookup failed: %v", err)
		} else if ok {
			var cached model.ChatMessage
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.State != model.StateActive {
		return nil, apperr.InvalidStatef("session %s is not active", req.SessionID)
	}
	if session.AssignedStaffID != req.StaffID {
		return nil, apperr.Forbiddenf("session %s is assigned to another staff member", req.SessionID)
	}

	msg, err := s.store.AppendMessage(ctx, &model.ChatMessage{
		SessionID:  req.SessionID,
		SenderType: model.SenderStaff,
		SenderID:   req.StaffID,
		Body:       req.Message,
	})
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		if payload, err := json.Marshal(msg); err == nil {
			if err := s.idem.Save(ctx, idemKey, payload); err != nil {
				log.Printf("chat: idempotency save failed: %v", err)
			}
		}
	}
	return msg, nil
}

// History is a session's full message list and attachments.
type History struct {
	Messages []*model.ChatMessage `json:"messages"`
	Files    []*model.StoredFile  `json:"files"`
}

// GetHistory returns the session's messages (optionally from since,
// inclusive) together with its file descriptors.
func (s *Service) GetHistory(ctx context.Context, sessionID string, since time.Time) (*History, error) {
	messages, err := s.store.ListMessages(ctx, sessionID, since)
	if err != nil {
		return nil, err
	}
	var files []*model.StoredFile
	if s.files != nil {
		files, err = s.files.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	return &History{Messages: messages, Files: files}, nil
}

// Status is the session state as observed by the widget poller.
type Status struct {
	SessionID          string             `json:"session_id"`
	Status             model.SessionState `json:"status"`
	IsConnectedToStaff bool               `json:"is_connected_to_staff"`
	StaffMember        string             `json:"staff_member,omitempty"`
}

// GetStatus returns the polling view of a session's state.
func (s *Service) GetStatus(ctx context.Context, sessionID string) (*Status, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Status{
		SessionID:          session.ID,
		Status:             session.State,
		IsConnectedToStaff: session.State == model.StateActive,
		StaffMember:        session.StaffName,
	}, nil
}
