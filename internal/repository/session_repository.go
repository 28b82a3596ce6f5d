package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
	"github.com/zaxchat/zax-backend/internal/service/handoff"
)

// SessionRepository is the durable session store both clients synchronize
// against. Writes to one session are serialized with a row lock so a
// message cannot land after closure is recorded, and message ordering is
// created_at with the seq column as the insertion-order tiebreak.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates the session repository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession initializes a session in state bot.
func (r *SessionRepository) CreateSession(ctx context.Context, id, userID string) (*model.ChatSession, error) {
	session := &model.ChatSession{
		ID:             id,
		UserID:         userID,
		State:          model.StateBot,
		LastActivityAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.AlreadyExistsf("session %s", id)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession fetches one session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("session %s", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// AppendMessage persists one message. The session row is locked for the
// duration so concurrent appends and endSession cannot interleave; the
// write-permission matrix is enforced against the locked state.
func (r *SessionRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.SessionID).First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("session %s", msg.SessionID)
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}

		if !handoff.CanAppend(session.State, msg.SenderType) {
			return apperr.InvalidStatef("sender %s cannot write in state %s", msg.SenderType, session.State)
		}

		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		return tx.Model(&model.ChatSession{}).Where("id = ?", session.ID).
			Update("last_activity_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the session's messages with created_at >= since
// (all of them when since is zero), ascending, ties broken by insertion
// order.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID string, since time.Time) ([]*model.ChatMessage, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var messages []*model.ChatMessage
	query := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Order("created_at ASC, seq ASC").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// ListActiveSessions projects all non-closed sessions for the staff
// console queue, most recent activity first.
func (r *SessionRepository) ListActiveSessions(ctx context.Context) ([]*model.SessionView, error) {
	var sessions []*model.ChatSession
	err := r.db.WithContext(ctx).
		Where("state <> ?", model.StateClosed).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]*model.SessionView, 0, len(sessions))
	for _, s := range sessions {
		var latest model.ChatMessage
		preview := ""
		err := r.db.WithContext(ctx).
			Where("session_id = ?", s.ID).
			Order("created_at DESC, seq DESC").
			First(&latest).Error
		if err == nil {
			preview = latest.Body
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load latest message: %w", err)
		}

		views = append(views, &model.SessionView{
			SessionID:      s.ID,
			Status:         s.State,
			UserID:         s.UserID,
			StaffName:      s.StaffName,
			LatestMessage:  preview,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
		})
	}
	return views, nil
}

// Transition applies fn to the session under a row lock. fn reports
// whether it changed anything; unchanged sessions are not rewritten, so
// idempotent no-op calls do not bump activity or reorder the queue.
func (r *SessionRepository) Transition(ctx context.Context, id string, fn func(*model.ChatSession) (bool, error)) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("session %s", id)
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}
		changed, err := fn(&session)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		session.LastActivityAt = time.Now()
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListIdleSessions returns ids of non-closed sessions with no activity
// since cutoff. Used by the expiry sweeper.
func (r *SessionRepository) ListIdleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("state <> ? AND last_activity_at < ?", model.StateClosed, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	return ids, nil
}

// AttachFile persists the descriptor and synthesizes the system message
// referencing it, in one transaction under the session lock.
func (r *SessionRepository) AttachFile(ctx context.Context, file *model.StoredFile) (*model.ChatMessage, error) {
	var msg *model.ChatMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", file.SessionID).First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("session %s", file.SessionID)
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if !handoff.CanAppend(session.State, model.SenderSystem) {
			return apperr.InvalidStatef("cannot attach file in state %s", session.State)
		}

		if file.ID == "" {
			file.ID = uuid.New().String()
		}
		if file.UploadedAt.IsZero() {
			file.UploadedAt = time.Now()
		}
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("failed to create file record: %w", err)
		}

		msg = &model.ChatMessage{
			ID:         uuid.New().String(),
			SessionID:  file.SessionID,
			SenderType: model.SenderSystem,
			SenderID:   "system",
			Body: fmt.Sprintf("[File] %s (%s) - %dKB",
				file.OriginalFilename, file.Category, file.SizeBytes/1024),
			FileID:    file.ID,
			CreatedAt: file.UploadedAt,
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create file message: %w", err)
		}

		return tx.Model(&model.ChatSession{}).Where("id = ?", session.ID).
			Update("last_activity_at", file.UploadedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
