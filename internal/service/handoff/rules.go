// Package handoff governs the transition of a chat session between the
// automated assistant and a human staff member, and the write permissions
// that go with each state.
package handoff

import "github.com/zaxchat/zax-backend/internal/model"

// CanAppend reports whether a sender may write a message in the given
// session state. The synthetic system sender is accepted in any state
// except closed; it carries upload notices and handoff notices.
func CanAppend(state model.SessionState, sender model.SenderType) bool {
	if state == model.StateClosed {
		return false
	}
	if sender == model.SenderSystem {
		return true
	}
	switch state {
	case model.StateBot:
		return sender == model.SenderUser || sender == model.SenderBot
	case model.StatePending:
		return sender == model.SenderUser
	case model.StateActive:
		return sender == model.SenderUser || sender == model.SenderStaff
	}
	return false
}

// Event is a requested state transition.
type Event string

const (
	EventRequestAssistance Event = "request_assistance"
	EventStaffConnect      Event = "staff_connect"
	EventEndSession        Event = "end_session"
	EventExpire            Event = "expire"
)

// Next returns the state reached by applying event to state. The second
// return is false when the transition is not in the table.
func Next(state model.SessionState, event Event) (model.SessionState, bool) {
	switch event {
	case EventRequestAssistance:
		if state == model.StateBot {
			return model.StatePending, true
		}
	case EventStaffConnect:
		if state == model.StatePending {
			return model.StateActive, true
		}
	case EventEndSession:
		if state == model.StateActive {
			return model.StateClosed, true
		}
	case EventExpire:
		if state != model.StateClosed {
			return model.StateClosed, true
		}
	}
	return state, false
}
