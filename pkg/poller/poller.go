// Package poller implements the polling synchronization protocol used
// by both chat clients: periodic status and message polls, seen-message
// de-duplication, one-shot transition notices and teardown guarantees.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zaxchat/zax-backend/pkg/client"
)

// Default poll intervals.
const (
	DefaultStatusInterval  = 2 * time.Second
	DefaultMessageInterval = 1500 * time.Millisecond
	DefaultQueueInterval   = 2 * time.Second
)

// EventKind discriminates poller events.
type EventKind int

const (
	// EventMessage is a not-yet-seen transcript message.
	EventMessage EventKind = iota
	// EventStaffJoined fires once when the session turns active.
	EventStaffJoined
	// EventChatEnded fires once when the session closes.
	EventChatEnded
	// EventRatingPrompt fires at most once per session id, after the
	// chat-ended notice.
	EventRatingPrompt
)

// Event is one observation delivered to the widget.
type Event struct {
	Kind        EventKind
	Message     *client.Message
	StaffMember string
}

// WidgetAPI is the slice of the backend client the widget poller uses.
type WidgetAPI interface {
	SessionStatus(ctx context.Context, sessionID string) (*client.Status, error)
	ChatHistory(ctx context.Context, sessionID string, since time.Time) (*client.History, error)
}

// PromptLog remembers which sessions have already shown the rating
// prompt. Sharing one log across pollers keeps the prompt one-shot
// even when a session is re-opened.
type PromptLog struct {
	mu       sync.Mutex
	prompted map[string]struct{}
}

// NewPromptLog creates an empty log.
func NewPromptLog() *PromptLog {
	return &PromptLog{prompted: make(map[string]struct{})}
}

// MarkPrompted records the session and reports whether this was the
// first time.
func (p *PromptLog) MarkPrompted(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.prompted[sessionID]; ok {
		return false
	}
	p.prompted[sessionID] = struct{}{}
	return true
}

// WidgetPoller watches one session for the chat widget. Events are
// delivered on the polling goroutine; after Stop returns no further
// events are delivered.
type WidgetPoller struct {
	api       WidgetAPI
	sessionID string
	emit      func(Event)
	prompts   *PromptLog

	statusEvery  time.Duration
	messageEvery time.Duration

	mu          sync.Mutex
	alive       bool
	seen        map[string]struct{}
	staffJoined bool
	ended       bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// WidgetOption configures a WidgetPoller.
type WidgetOption func(*WidgetPoller)

// WithIntervals overrides the status and message poll intervals.
func WithIntervals(status, message time.Duration) WidgetOption {
	return func(p *WidgetPoller) {
		p.statusEvery = status
		p.messageEvery = message
	}
}

// WithPromptLog shares a rating-prompt log across pollers.
func WithPromptLog(log *PromptLog) WidgetOption {
	return func(p *WidgetPoller) { p.prompts = log }
}

// NewWidgetPoller creates a poller for the session. emit receives all
// events; it must not block for long, polling is paused while it runs.
func NewWidgetPoller(api WidgetAPI, sessionID string, emit func(Event), opts ...WidgetOption) *WidgetPoller {
	p := &WidgetPoller{
		api:          api,
		sessionID:    sessionID,
		emit:         emit,
		prompts:      NewPromptLog(),
		statusEvery:  DefaultStatusInterval,
		messageEvery: DefaultMessageInterval,
		seen:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling. It is a no-op if the poller already ran.
func (p *WidgetPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.alive || p.done != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.alive = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop tears the poller down. Once Stop returns, no in-flight poll
// result is applied.
func (p *WidgetPoller) Stop() {
	p.mu.Lock()
	p.alive = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (p *WidgetPoller) run(ctx context.Context) {
	defer close(p.done)

	statusTicker := time.NewTicker(p.statusEvery)
	defer statusTicker.Stop()
	messageTicker := time.NewTicker(p.messageEvery)
	defer messageTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTicker.C:
			p.pollStatus(ctx)
		case <-messageTicker.C:
			p.pollMessages(ctx)
		}
	}
}

// pollStatus observes state transitions. Poll errors are logged and
// retried on the next tick, never surfaced.
func (p *WidgetPoller) pollStatus(ctx context.Context) {
	status, err := p.api.SessionStatus(ctx, p.sessionID)
	if err != nil {
		log.Printf("poller: status poll failed for session %s: %v", p.sessionID, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return
	}

	if status.Status == "active" && !p.staffJoined {
		p.staffJoined = true
		p.emit(Event{Kind: EventStaffJoined, StaffMember: status.StaffMember})
	}

	if status.Status == "closed" && !p.ended {
		p.ended = true
		p.emit(Event{Kind: EventChatEnded})
		if p.prompts.MarkPrompted(p.sessionID) {
			p.emit(Event{Kind: EventRatingPrompt})
		}
	}
}

// pollMessages delivers each transcript message exactly once, keyed by
// message id.
func (p *WidgetPoller) pollMessages(ctx context.Context) {
	history, err := p.api.ChatHistory(ctx, p.sessionID, time.Time{})
	if err != nil {
		log.Printf("poller: message poll failed for session %s: %v", p.sessionID, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return
	}

	for _, msg := range history.Messages {
		if _, ok := p.seen[msg.ID]; ok {
			continue
		}
		p.seen[msg.ID] = struct{}{}
		p.emit(Event{Kind: EventMessage, Message: msg})
	}
}
