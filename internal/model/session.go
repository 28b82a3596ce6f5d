package model

import "time"

// SessionState is the handoff state of a chat session.
type SessionState string

const (
	StateBot     SessionState = "bot"     // served by the automated assistant
	StatePending SessionState = "pending" // assistance requested, awaiting staff pickup
	StateActive  SessionState = "active"  // a staff member is connected
	StateClosed  SessionState = "closed"  // terminal; a new session is required to resume
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderBot    SenderType = "bot"
	SenderStaff  SenderType = "staff"
	SenderSystem SenderType = "system"
)

// ChatSession is one end-to-end conversation. The id is generated
// client-side at first interaction and stays stable for its lifetime.
type ChatSession struct {
	ID              string        `gorm:"primaryKey;size:64" json:"session_id"`
	UserID          string        `gorm:"index;size:64" json:"user_id"`
	State           SessionState  `gorm:"index;size:20;default:bot" json:"status"`
	AssignedStaffID string        `gorm:"index;size:36" json:"assigned_staff_id,omitempty"`
	StaffName       string        `gorm:"size:100" json:"staff_member,omitempty"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	LastActivityAt  time.Time     `gorm:"index" json:"last_activity_at"`
	Messages        []ChatMessage `gorm:"foreignKey:SessionID" json:"-"`
}

// ChatMessage is a single message within a session. Seq is a database
// sequence used as the insertion-order tiebreak for equal timestamps.
type ChatMessage struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID  string     `gorm:"index;size:64" json:"session_id"`
	Seq        int64      `gorm:"autoIncrement;uniqueIndex" json:"-"`
	SenderType SenderType `gorm:"size:20;index" json:"sender_type"`
	SenderID   string     `gorm:"size:64" json:"sender_id,omitempty"`
	Body       string     `gorm:"type:text" json:"message"`
	IsError    bool       `gorm:"default:false" json:"is_error,omitempty"`
	FileID     string     `gorm:"size:36" json:"file_id,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"timestamp"`
}

// SessionView is the read projection served to the staff console queue.
// It is recomputed on every poll, never stored.
type SessionView struct {
	SessionID      string       `json:"session_id"`
	Status         SessionState `json:"status"`
	UserID         string       `json:"user_id"`
	StaffName      string       `json:"staff_member,omitempty"`
	LatestMessage  string       `json:"latest_message"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
