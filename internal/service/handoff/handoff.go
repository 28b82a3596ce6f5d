package handoff

import (
	"context"
	"log"
	"time"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
)

// Store is the slice of the session store the handoff service needs.
type Store interface {
	Transition(ctx context.Context, id string, fn func(*model.ChatSession) (bool, error)) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error)
	ListIdleSessions(ctx context.Context, cutoff time.Time) ([]string, error)
	ListActiveSessions(ctx context.Context) ([]*model.SessionView, error)
}

// Service applies handoff transitions and runs the idle-session sweeper.
type Service struct {
	store      Store
	idleAfter  time.Duration
	sweepEvery time.Duration
}

// NewService creates the handoff service. idleAfter is the inactivity
// window after which any non-closed session expires.
func NewService(store Store, idleAfter, sweepEvery time.Duration) *Service {
	return &Service{store: store, idleAfter: idleAfter, sweepEvery: sweepEvery}
}

// RequestAssistance moves a bot session to pending. Calling it again
// while already pending or active is a no-op; a closed session rejects.
func (s *Service) RequestAssistance(ctx context.Context, sessionID, userID string) (*model.ChatSession, error) {
	changed := false
	session, err := s.store.Transition(ctx, sessionID, func(cs *model.ChatSession) (bool, error) {
		next, ok := Next(cs.State, EventRequestAssistance)
		if !ok {
			if cs.State == model.StateClosed {
				return false, apperr.InvalidStatef("session %s is closed", sessionID)
			}
			return false, nil // already pending or active
		}
		cs.State = next
		if userID != "" {
			cs.UserID = userID
		}
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		_, err = s.store.AppendMessage(ctx, &model.ChatMessage{
			SessionID:  sessionID,
			SenderType: model.SenderSystem,
			SenderID:   "system",
			Body:       "Assistance requested. A support officer will be with you shortly.",
		})
		if err != nil {
			return nil, err
		}
	}
	return session, nil
}

// StaffConnect assigns a staff member to a pending session, first wins.
// Reconnecting as the already-assigned staff is a no-op; a different
// staff member is rejected.
func (s *Service) StaffConnect(ctx context.Context, sessionID, staffID, staffName string) (*model.ChatSession, error) {
	return s.store.Transition(ctx, sessionID, func(cs *model.ChatSession) (bool, error) {
		next, ok := Next(cs.State, EventStaffConnect)
		if !ok {
			switch cs.State {
			case model.StateActive:
				if cs.AssignedStaffID == staffID {
					return false, nil // reconnect
				}
				return false, apperr.Forbiddenf("session %s is handled by another staff member", sessionID)
			case model.StateClosed:
				return false, apperr.InvalidStatef("session %s is closed", sessionID)
			default:
				return false, apperr.InvalidStatef("session %s has not requested assistance", sessionID)
			}
		}
		cs.State = next
		cs.AssignedStaffID = staffID
		cs.StaffName = staffName
		return true, nil
	})
}

// EndSession closes an active session. Only the assigned staff member
// may end it. Closed is terminal; the widget starts a new session to
// resume assistance.
func (s *Service) EndSession(ctx context.Context, sessionID, staffID string) (*model.ChatSession, error) {
	return s.store.Transition(ctx, sessionID, func(cs *model.ChatSession) (bool, error) {
		next, ok := Next(cs.State, EventEndSession)
		if !ok {
			return false, apperr.InvalidStatef("session %s is not active", sessionID)
		}
		if cs.AssignedStaffID != staffID {
			return false, apperr.Forbiddenf("session %s is assigned to another staff member", sessionID)
		}
		cs.State = next
		cs.AssignedStaffID = ""
		return true, nil
	})
}

// Queue returns the staff console's session queue: every non-closed
// session, most recently active first.
func (s *Service) Queue(ctx context.Context) ([]*model.SessionView, error) {
	return s.store.ListActiveSessions(ctx)
}

// Run sweeps idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ExpireIdle(ctx); err != nil {
				log.Printf("handoff: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("handoff: expired %d idle sessions", n)
			}
		}
	}
}

// ExpireIdle closes all sessions idle past the configured window and
// returns how many were closed.
func (s *Service) ExpireIdle(ctx context.Context) (int, error) {
	ids, err := s.store.ListIdleSessions(ctx, time.Now().Add(-s.idleAfter))
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, id := range ids {
		_, err := s.store.Transition(ctx, id, func(cs *model.ChatSession) (bool, error) {
			next, ok := Next(cs.State, EventExpire)
			if !ok {
				return false, nil // already closed
			}
			cs.State = next
			cs.AssignedStaffID = ""
			return true, nil
		})
		if err != nil {
			log.Printf("handoff: failed to expire session %s: %v", id, err)
			continue
		}
		closed++
	}
	return closed, nil
}
