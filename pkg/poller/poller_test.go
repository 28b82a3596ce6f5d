package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zaxchat/zax-backend/pkg/client"
)

// mockWidgetAPI serves a scripted status and transcript.
type mockWidgetAPI struct {
	mu       sync.Mutex
	status   *client.Status
	messages []*client.Message
}

func (m *mockWidgetAPI) SessionStatus(ctx context.Context, sessionID string) (*client.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := *m.status
	return &status, nil
}

func (m *mockWidgetAPI) ChatHistory(ctx context.Context, sessionID string, since time.Time) (*client.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]*client.Message, len(m.messages))
	copy(msgs, m.messages)
	return &client.History{Messages: msgs}, nil
}

func (m *mockWidgetAPI) setStatus(status string, staff string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = &client.Status{SessionID: "s1", Status: status, StaffMember: staff}
}

func (m *mockWidgetAPI) addMessage(id, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, &client.Message{ID: id, SessionID: "s1", SenderType: "staff", Body: body})
}

// eventSink collects events thread-safely.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) count(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWidgetPollerDeduplicatesMessages(t *testing.T) {
	api := &mockWidgetAPI{}
	api.setStatus("pending", "")
	api.addMessage("m1", "hello")
	api.addMessage("m2", "world")

	sink := &eventSink{}
	p := NewWidgetPoller(api, "s1", sink.emit, WithIntervals(5*time.Millisecond, 5*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	// Overlapping polls keep returning m1 and m2; each must render once.
	waitFor(t, func() bool { return sink.count(EventMessage) >= 2 }, "messages never delivered")
	time.Sleep(30 * time.Millisecond)
	if n := sink.count(EventMessage); n != 2 {
		t.Errorf("delivered %d message events, want 2", n)
	}

	api.addMessage("m3", "new")
	waitFor(t, func() bool { return sink.count(EventMessage) == 3 }, "new message not delivered")
}

func TestWidgetPollerStaffJoinedOnce(t *testing.T) {
	api := &mockWidgetAPI{}
	api.setStatus("pending", "")

	sink := &eventSink{}
	p := NewWidgetPoller(api, "s1", sink.emit, WithIntervals(5*time.Millisecond, time.Hour))
	p.Start(context.Background())
	defer p.Stop()

	time.Sleep(20 * time.Millisecond)
	if n := sink.count(EventStaffJoined); n != 0 {
		t.Fatalf("staff-joined fired %d times before activation", n)
	}

	api.setStatus("active", "Nathan")
	waitFor(t, func() bool { return sink.count(EventStaffJoined) == 1 }, "staff-joined never fired")
	time.Sleep(30 * time.Millisecond)
	if n := sink.count(EventStaffJoined); n != 1 {
		t.Errorf("staff-joined fired %d times, want 1", n)
	}
}

func TestWidgetPollerChatEndedAndRatingOnce(t *testing.T) {
	api := &mockWidgetAPI{}
	api.setStatus("active", "Nathan")

	prompts := NewPromptLog()
	sink := &eventSink{}
	p := NewWidgetPoller(api, "s1", sink.emit,
		WithIntervals(5*time.Millisecond, time.Hour), WithPromptLog(prompts))
	p.Start(context.Background())

	api.setStatus("closed", "")
	waitFor(t, func() bool { return sink.count(EventChatEnded) == 1 }, "chat-ended never fired")
	time.Sleep(30 * time.Millisecond)
	if n := sink.count(EventChatEnded); n != 1 {
		t.Errorf("chat-ended fired %d times, want 1", n)
	}
	if n := sink.count(EventRatingPrompt); n != 1 {
		t.Errorf("rating prompt fired %d times, want 1", n)
	}
	p.Stop()

	// Re-opening the same session must not prompt again.
	sink2 := &eventSink{}
	p2 := NewWidgetPoller(api, "s1", sink2.emit,
		WithIntervals(5*time.Millisecond, time.Hour), WithPromptLog(prompts))
	p2.Start(context.Background())
	waitFor(t, func() bool { return sink2.count(EventChatEnded) == 1 }, "chat-ended never fired on reopen")
	p2.Stop()
	if n := sink2.count(EventRatingPrompt); n != 0 {
		t.Errorf("rating prompt fired %d times on reopen, want 0", n)
	}
}

func TestWidgetPollerStopDiscardsResults(t *testing.T) {
	api := &mockWidgetAPI{}
	api.setStatus("active", "Nathan")
	api.addMessage("m1", "hello")

	sink := &eventSink{}
	p := NewWidgetPoller(api, "s1", sink.emit, WithIntervals(5*time.Millisecond, 5*time.Millisecond))
	p.Start(context.Background())
	waitFor(t, func() bool { return sink.count(EventMessage) == 1 }, "message never delivered")

	p.Stop()
	before := len(sink.events)
	api.addMessage("m2", "late")
	time.Sleep(30 * time.Millisecond)
	sink.mu.Lock()
	after := len(sink.events)
	sink.mu.Unlock()
	if after != before {
		t.Errorf("%d events applied after Stop", after-before)
	}
}
