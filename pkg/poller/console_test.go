package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zaxchat/zax-backend/pkg/client"
)

type mockConsoleAPI struct {
	mu       sync.Mutex
	queue    []*client.SessionSummary
	messages map[string][]*client.Message
}

func newMockConsoleAPI() *mockConsoleAPI {
	return &mockConsoleAPI{messages: make(map[string][]*client.Message)}
}

func (m *mockConsoleAPI) ActiveSessions(ctx context.Context) ([]*client.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*client.SessionSummary, len(m.queue))
	copy(out, m.queue)
	return out, nil
}

func (m *mockConsoleAPI) AdminChatHistory(ctx context.Context, sessionID string, since time.Time) (*client.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]*client.Message, len(m.messages[sessionID]))
	copy(msgs, m.messages[sessionID])
	return &client.History{Messages: msgs}, nil
}

func (m *mockConsoleAPI) setQueue(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = m.queue[:0]
	for _, id := range ids {
		m.queue = append(m.queue, &client.SessionSummary{SessionID: id})
	}
}

func (m *mockConsoleAPI) addMessage(sessionID, id, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[sessionID] = append(m.messages[sessionID], &client.Message{ID: id, SessionID: sessionID, Body: body})
}

type consoleSink struct {
	mu       sync.Mutex
	queues   [][]*client.SessionSummary
	messages []*client.Message
}

func (s *consoleSink) onQueue(sessions []*client.SessionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = append(s.queues, sessions)
}

func (s *consoleSink) onMessage(sessionID string, msg *client.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *consoleSink) queuePolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

func (s *consoleSink) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func TestConsolePollerQueueRefresh(t *testing.T) {
	api := newMockConsoleAPI()
	api.setQueue("s1", "s2")

	sink := &consoleSink{}
	p := NewConsolePoller(api, sink.onQueue, sink.onMessage, WithConsoleIntervals(5*time.Millisecond, time.Hour))
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return sink.queuePolls() >= 2 }, "queue never refreshed")
	sink.mu.Lock()
	last := sink.queues[len(sink.queues)-1]
	sink.mu.Unlock()
	if len(last) != 2 {
		t.Errorf("queue has %d sessions, want 2", len(last))
	}
}

func TestConsolePollerOpenSessionMessages(t *testing.T) {
	api := newMockConsoleAPI()
	api.addMessage("s1", "m1", "hello")

	sink := &consoleSink{}
	p := NewConsolePoller(api, sink.onQueue, sink.onMessage, WithConsoleIntervals(time.Hour, 5*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	// Nothing delivered until a session is opened.
	time.Sleep(20 * time.Millisecond)
	if n := sink.messageCount(); n != 0 {
		t.Fatalf("delivered %d messages with no open session", n)
	}

	p.Open("s1")
	waitFor(t, func() bool { return sink.messageCount() == 1 }, "message never delivered")
	time.Sleep(30 * time.Millisecond)
	if n := sink.messageCount(); n != 1 {
		t.Errorf("delivered %d messages, want 1 after overlapping polls", n)
	}
}

func TestConsolePollerSwitchDiscardsOldSession(t *testing.T) {
	api := newMockConsoleAPI()
	api.addMessage("s1", "m1", "from s1")
	api.addMessage("s2", "m2", "from s2")

	sink := &consoleSink{}
	p := NewConsolePoller(api, sink.onQueue, sink.onMessage, WithConsoleIntervals(time.Hour, 5*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	p.Open("s1")
	waitFor(t, func() bool { return sink.messageCount() == 1 }, "s1 message never delivered")

	p.Open("s2")
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		for _, m := range sink.messages {
			if m.SessionID == "s2" {
				return true
			}
		}
		return false
	}, "s2 message never delivered")

	// Closing the view stops transcript polling.
	p.Open("")
	n := sink.messageCount()
	api.addMessage("s2", "m3", "late")
	time.Sleep(30 * time.Millisecond)
	if sink.messageCount() != n {
		t.Error("messages applied after the view was closed")
	}
}
