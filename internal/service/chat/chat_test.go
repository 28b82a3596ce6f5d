package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/model"
	"github.com/zaxchat/zax-backend/internal/service/handoff"
)

// mockStore keeps sessions and messages in memory and enforces the
// same write matrix as the repository.
type mockStore struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[string][]*model.ChatMessage
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: make(map[string]*model.ChatSession),
		messages: make(map[string][]*model.ChatMessage),
	}
}

func (m *mockStore) add(session *model.ChatSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *mockStore) CreateSession(ctx context.Context, id, userID string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return nil, apperr.AlreadyExistsf("session %s already exists", id)
	}
	session := &model.ChatSession{ID: id, UserID: userID, State: model.StateBot}
	m.sessions[id] = session
	return session, nil
}

func (m *mockStore) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperr.NotFoundf("session %s not found", id)
	}
	return session, nil
}

func (m *mockStore) AppendMessage(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[msg.SessionID]
	if !ok {
		return nil, apperr.NotFoundf("session %s not found", msg.SessionID)
	}
	if !handoff.CanAppend(session.State, msg.SenderType) {
		return nil, apperr.InvalidStatef("%s message not allowed in state %s", msg.SenderType, session.State)
	}
	msg.ID = uuid.New().String()
	msg.CreatedAt = time.Now()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return msg, nil
}

func (m *mockStore) ListMessages(ctx context.Context, sessionID string, since time.Time) ([]*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, apperr.NotFoundf("session %s not found", sessionID)
	}
	return m.messages[sessionID], nil
}

// mockResponder counts calls and returns a canned reply.
type mockResponder struct {
	mu    sync.Mutex
	calls int
	reply *Reply
	err   error
}

func (m *mockResponder) Ask(ctx context.Context, sessionID, message string) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

type mockSuggester struct {
	faqs []*model.FAQ
}

func (m *mockSuggester) Suggest(ctx context.Context, query string, limit int) ([]*model.FAQ, error) {
	return m.faqs, nil
}

func TestSubmitUserMessageBotReply(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	responder := &mockResponder{reply: &Reply{
		Text:         "You can register for VAT on the ZRA portal.",
		IsZRARelated: true,
		FollowUps:    []string{"What documents do I need?"},
	}}
	suggester := &mockSuggester{faqs: []*model.FAQ{{ID: "f1", Question: "How do I register for VAT?"}}}
	svc := NewService(store, nil, responder, suggester, nil)

	result, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{
		Message: "How do I register for VAT?",
	})
	if err != nil {
		t.Fatalf("SubmitUserMessage() error = %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("no session id assigned")
	}
	if result.Status != model.StateBot {
		t.Errorf("status = %s, want %s", result.Status, model.StateBot)
	}
	if result.Reply == nil || result.Reply.Body != responder.reply.Text {
		t.Errorf("reply = %+v, want responder text", result.Reply)
	}
	if result.Reply.SenderType != model.SenderBot {
		t.Errorf("reply sender = %s, want %s", result.Reply.SenderType, model.SenderBot)
	}
	if !result.IsZRARelated {
		t.Error("is_zra_related not propagated")
	}
	if len(result.FollowUps) != 1 {
		t.Errorf("follow_ups = %v, want 1 entry", result.FollowUps)
	}
	if len(result.SuggestedFAQs) != 1 {
		t.Errorf("suggested_faqs = %v, want 1 entry", result.SuggestedFAQs)
	}

	msgs := store.messages[result.SessionID]
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want user + bot", len(msgs))
	}
	if msgs[0].SenderType != model.SenderUser || msgs[1].SenderType != model.SenderBot {
		t.Errorf("message senders = %s, %s", msgs[0].SenderType, msgs[1].SenderType)
	}
}

func TestSubmitUserMessageResponderFailure(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	responder := &mockResponder{err: apperr.Upstreamf("model timed out")}
	svc := NewService(store, nil, responder, nil, nil)

	result, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("responder failure must not surface, got error = %v", err)
	}
	if result.Reply == nil || result.Reply.Body != FallbackReply {
		t.Errorf("reply = %+v, want fallback apology", result.Reply)
	}
	if !result.Reply.IsError {
		t.Error("fallback reply not flagged as error")
	}
}

func TestSubmitUserMessageNoResponder(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewService(store, nil, nil, nil, nil)

	result, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("SubmitUserMessage() error = %v", err)
	}
	if result.Reply == nil || result.Reply.Body != FallbackReply {
		t.Errorf("reply = %+v, want fallback apology", result.Reply)
	}
}

func TestSubmitUserMessagePendingPersistOnly(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", UserID: "u1", State: model.StatePending})
	responder := &mockResponder{reply: &Reply{Text: "should not be called"}}
	svc := NewService(store, nil, responder, nil, nil)

	result, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{SessionID: "s1", Message: "still waiting"})
	if err != nil {
		t.Fatalf("SubmitUserMessage() error = %v", err)
	}
	if result.Reply != nil {
		t.Errorf("got a reply in pending state: %+v", result.Reply)
	}
	if responder.calls != 0 {
		t.Errorf("responder called %d times in pending state, want 0", responder.calls)
	}
	if len(store.messages["s1"]) != 1 {
		t.Errorf("stored %d messages, want just the user message", len(store.messages["s1"]))
	}
}

func TestSubmitUserMessageClosedSession(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", State: model.StateClosed})
	svc := NewService(store, nil, nil, nil, nil)

	_, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{SessionID: "s1", Message: "anyone there?"})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestSubmitUserMessageAnonymousSession(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewService(store, nil, nil, nil, nil)

	result, err := svc.SubmitUserMessage(ctx, &SubmitUserRequest{SessionID: "anonymous", Message: "hi"})
	if err != nil {
		t.Fatalf("SubmitUserMessage() error = %v", err)
	}
	if result.SessionID == "anonymous" || result.SessionID == "" {
		t.Errorf("session id = %q, want a fresh server-side id", result.SessionID)
	}
}

func TestSubmitUserMessageRetryDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	responder := &mockResponder{reply: &Reply{Text: "first answer"}}
	svc := NewService(store, nil, responder, nil, NewMemoryIdempotency(time.Minute))

	req := &SubmitUserRequest{SessionID: "s1", Message: "hello", ClientMsgID: "c-1"}
	store.add(&model.ChatSession{ID: "s1", State: model.StateBot})

	first, err := svc.SubmitUserMessage(ctx, req)
	if err != nil {
		t.Fatalf("first submit error = %v", err)
	}
	second, err := svc.SubmitUserMessage(ctx, req)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}

	if responder.calls != 1 {
		t.Errorf("responder called %d times, want 1", responder.calls)
	}
	if len(store.messages["s1"]) != 2 {
		t.Errorf("stored %d messages after retry, want 2", len(store.messages["s1"]))
	}
	if first.Reply == nil || second.Reply == nil || first.Reply.ID != second.Reply.ID {
		t.Errorf("retry returned a different reply: %+v vs %+v", first.Reply, second.Reply)
	}

	// A different client message id is a new logical event.
	req2 := &SubmitUserRequest{SessionID: "s1", Message: "hello again", ClientMsgID: "c-2"}
	if _, err := svc.SubmitUserMessage(ctx, req2); err != nil {
		t.Fatalf("second message error = %v", err)
	}
	if responder.calls != 2 {
		t.Errorf("responder called %d times, want 2", responder.calls)
	}
}

func TestSubmitStaffMessage(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", State: model.StateActive, AssignedStaffID: "staff-1"})
	svc := NewService(store, nil, nil, nil, nil)

	msg, err := svc.SubmitStaffMessage(ctx, &SubmitStaffRequest{
		SessionID: "s1",
		StaffID:   "staff-1",
		Message:   "Hello, I'm Nathan",
	})
	if err != nil {
		t.Fatalf("SubmitStaffMessage() error = %v", err)
	}
	if msg.SenderType != model.SenderStaff || msg.SenderID != "staff-1" {
		t.Errorf("message = %+v, want staff sender", msg)
	}
}

func TestSubmitStaffMessageRetryDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", State: model.StateActive, AssignedStaffID: "staff-1"})
	svc := NewService(store, nil, nil, nil, NewMemoryIdempotency(time.Minute))

	req := &SubmitStaffRequest{
		SessionID:   "s1",
		StaffID:     "staff-1",
		Message:     "Hello, I'm Nathan",
		ClientMsgID: "c-1",
	}
	first, err := svc.SubmitStaffMessage(ctx, req)
	if err != nil {
		t.Fatalf("first submit error = %v", err)
	}
	second, err := svc.SubmitStaffMessage(ctx, req)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}

	if len(store.messages["s1"]) != 1 {
		t.Errorf("stored %d staff messages after retry, want 1", len(store.messages["s1"]))
	}
	if first.ID != second.ID {
		t.Errorf("retry returned a different message: %s vs %s", first.ID, second.ID)
	}

	// A different client message id is a new logical event.
	req2 := &SubmitStaffRequest{SessionID: "s1", StaffID: "staff-1", Message: "Anything else?", ClientMsgID: "c-2"}
	if _, err := svc.SubmitStaffMessage(ctx, req2); err != nil {
		t.Fatalf("second message error = %v", err)
	}
	if len(store.messages["s1"]) != 2 {
		t.Errorf("stored %d staff messages, want 2", len(store.messages["s1"]))
	}
}

func TestSubmitStaffMessageRejections(t *testing.T) {
	tests := []struct {
		name    string
		session *model.ChatSession
		staffID string
		wantErr error
	}{
		{
			name:    "not active",
			session: &model.ChatSession{ID: "s1", State: model.StateBot},
			staffID: "staff-1",
			wantErr: apperr.ErrInvalidState,
		},
		{
			name:    "pending",
			session: &model.ChatSession{ID: "s1", State: model.StatePending},
			staffID: "staff-1",
			wantErr: apperr.ErrInvalidState,
		},
		{
			name:    "wrong staff",
			session: &model.ChatSession{ID: "s1", State: model.StateActive, AssignedStaffID: "staff-1"},
			staffID: "staff-2",
			wantErr: apperr.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			store.add(tt.session)
			svc := NewService(store, nil, nil, nil, nil)

			_, err := svc.SubmitStaffMessage(context.Background(), &SubmitStaffRequest{
				SessionID: "s1",
				StaffID:   tt.staffID,
				Message:   "hi",
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", State: model.StateActive, StaffName: "Nathan"})
	svc := NewService(store, nil, nil, nil, nil)

	status, err := svc.GetStatus(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !status.IsConnectedToStaff {
		t.Error("IsConnectedToStaff = false for active session")
	}
	if status.StaffMember != "Nathan" {
		t.Errorf("staff member = %s, want Nathan", status.StaffMember)
	}

	if _, err := svc.GetStatus(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown session error = %v, want ErrNotFound", err)
	}
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.add(&model.ChatSession{ID: "s1", State: model.StateBot})
	for i := 0; i < 3; i++ {
		if _, err := store.AppendMessage(ctx, &model.ChatMessage{
			SessionID:  "s1",
			SenderType: model.SenderUser,
			Body:       fmt.Sprintf("message %d", i),
		}); err != nil {
			t.Fatalf("seed message error = %v", err)
		}
	}
	svc := NewService(store, nil, nil, nil, nil)

	history, err := svc.GetHistory(ctx, "s1", time.Time{})
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history.Messages) != 3 {
		t.Errorf("got %d messages, want 3", len(history.Messages))
	}
}
