package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zaxchat/zax-backend/pkg/client"
)

// ConsoleAPI is the slice of the backend client the console poller uses.
type ConsoleAPI interface {
	ActiveSessions(ctx context.Context) ([]*client.SessionSummary, error)
	AdminChatHistory(ctx context.Context, sessionID string, since time.Time) (*client.History, error)
}

// ConsolePoller refreshes the staff queue on one interval and, while a
// session is open in the console, its transcript on a shorter one.
// Switching or closing the open session discards in-flight results for
// the abandoned session.
type ConsolePoller struct {
	api       ConsoleAPI
	onQueue   func([]*client.SessionSummary)
	onMessage func(sessionID string, msg *client.Message)

	queueEvery   time.Duration
	messageEvery time.Duration

	mu      sync.Mutex
	alive   bool
	open    string
	openGen int
	seen    map[string]struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// ConsoleOption configures a ConsolePoller.
type ConsoleOption func(*ConsolePoller)

// WithConsoleIntervals overrides the queue and message poll intervals.
func WithConsoleIntervals(queue, message time.Duration) ConsoleOption {
	return func(p *ConsolePoller) {
		p.queueEvery = queue
		p.messageEvery = message
	}
}

// NewConsolePoller creates the console poller. onQueue and onMessage
// are delivered on the polling goroutine.
func NewConsolePoller(api ConsoleAPI, onQueue func([]*client.SessionSummary), onMessage func(sessionID string, msg *client.Message), opts ...ConsoleOption) *ConsolePoller {
	p := &ConsolePoller{
		api:          api,
		onQueue:      onQueue,
		onMessage:    onMessage,
		queueEvery:   DefaultQueueInterval,
		messageEvery: DefaultMessageInterval,
		seen:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling. It is a no-op if the poller already ran.
func (p *ConsolePoller) Start(ctx context.Context) {
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

// Stop tears the poller down; no result is applied afterwards.
func (p *ConsolePoller) Stop() {
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

// Open switches the transcript poll to sessionID. An empty id closes
// the open session. Results of in-flight polls for the previous
// session are discarded.
func (p *ConsolePoller) Open(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open == sessionID {
		return
	}
	p.open = sessionID
	p.openGen++
	p.seen = make(map[string]struct{})
}

func (p *ConsolePoller) run(ctx context.Context) {
	defer close(p.done)

	queueTicker := time.NewTicker(p.queueEvery)
	defer queueTicker.Stop()
	messageTicker := time.NewTicker(p.messageEvery)
	defer messageTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-queueTicker.C:
			p.pollQueue(ctx)
		case <-messageTicker.C:
			p.pollOpenSession(ctx)
		}
	}
}

func (p *ConsolePoller) pollQueue(ctx context.Context) {
	sessions, err := p.api.ActiveSessions(ctx)
	if err != nil {
		log.Printf("poller: queue poll failed: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return
	}
	p.onQueue(sessions)
}

func (p *ConsolePoller) pollOpenSession(ctx context.Context) {
	p.mu.Lock()
	sessionID := p.open
	gen := p.openGen
	p.mu.Unlock()
	if sessionID == "" {
		return
	}

	history, err := p.api.AdminChatHistory(ctx, sessionID, time.Time{})
	if err != nil {
		log.Printf("poller: message poll failed for session %s: %v", sessionID, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Discard results that raced with teardown or a session switch.
	if !p.alive || gen != p.openGen {
		return
	}

	for _, msg := range history.Messages {
		if _, ok := p.seen[msg.ID]; ok {
			continue
		}
		p.seen[msg.ID] = struct{}{}
		p.onMessage(sessionID, msg)
	}
}
