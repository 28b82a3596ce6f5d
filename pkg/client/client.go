// Package client is the HTTP client for the zax-backend API, used by
// the widget and staff console pollers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Message is one chat transcript entry.
type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	SenderType string    `json:"sender_type"`
	SenderID   string    `json:"sender_id"`
	Body       string    `json:"message"`
	IsError    bool      `json:"is_error"`
	FileID     string    `json:"file_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FileDescriptor is one uploaded attachment.
type FileDescriptor struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	ContentType      string    `json:"content_type"`
	FileSize         int64     `json:"file_size"`
	Processed        bool      `json:"processed"`
	UploadTime       time.Time `json:"upload_time"`
}

// FAQ is one quick-question entry.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question_en"`
	Answer   string `json:"answer_en"`
	Category string `json:"category"`
}

// SubmitResult is the outcome of submitting a user message.
type SubmitResult struct {
	SessionID     string   `json:"session_id"`
	Status        string   `json:"status"`
	UserMessage   *Message `json:"user_message"`
	Reply         *Message `json:"reply,omitempty"`
	IsZRARelated  bool     `json:"is_zra_related"`
	NeedsSupport  bool     `json:"needs_support"`
	FollowUps     []string `json:"follow_ups,omitempty"`
	SuggestedFAQs []*FAQ   `json:"suggested_faqs,omitempty"`
}

// Status is the widget's view of a session's state.
type Status struct {
	SessionID          string `json:"session_id"`
	Status             string `json:"status"`
	IsConnectedToStaff bool   `json:"is_connected_to_staff"`
	StaffMember        string `json:"staff_member,omitempty"`
}

// History is a session transcript with its attachments.
type History struct {
	Messages []*Message        `json:"messages"`
	Files    []*FileDescriptor `json:"files"`
}

// SessionSummary is one row of the staff console queue.
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	Status         string    `json:"status"`
	UserID         string    `json:"user_id"`
	StaffMember    string    `json:"staff_member,omitempty"`
	LatestMessage  string    `json:"latest_message"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// StaffInfo identifies the logged-in staff member.
type StaffInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError is a non-2xx response decoded from the envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the backend. The zero token is anonymous; staff
// endpoints require a token from Login.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets a staff token up front.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the staff token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 || env.Code != 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// SubmitMessage sends a user message and returns the routing outcome.
func (c *Client) SubmitMessage(ctx context.Context, sessionID, userID, message, clientMsgID string) (*SubmitResult, error) {
	var result SubmitResult
	err := c.do(ctx, http.MethodPost, "/api/chat", map[string]string{
		"session_id":    sessionID,
		"user_id":       userID,
		"message":       message,
		"client_msg_id": clientMsgID,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RequestAssistance moves the session into the staff queue.
func (c *Client) RequestAssistance(ctx context.Context, sessionID, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/request-assistance", map[string]string{
		"session_id": sessionID,
		"user_id":    userID,
	}, nil)
}

// SessionStatus polls the session's current state.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/session-status/"+url.PathEscape(sessionID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ChatHistory fetches the transcript, optionally from since (inclusive).
func (c *Client) ChatHistory(ctx context.Context, sessionID string, since time.Time) (*History, error) {
	path := "/api/chat-history/" + url.PathEscape(sessionID)
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339))
	}
	var history History
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// PopularFAQs fetches the widget's quick questions.
func (c *Client) PopularFAQs(ctx context.Context, limit int) ([]*FAQ, error) {
	var out struct {
		FAQs []*FAQ `json:"faqs"`
	}
	path := fmt.Sprintf("/api/faqs/popular?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.FAQs, nil
}

// UploadFile uploads one attachment to the session.
func (c *Client) UploadFile(ctx context.Context, sessionID, fileName string, content io.Reader) ([]*FileDescriptor, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("files", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 || env.Code != 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	var out struct {
		Files []*FileDescriptor `json:"files"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return out.Files, nil
}

// Login authenticates a staff member and stores the returned token on
// the client.
func (c *Client) Login(ctx context.Context, username, password string) (*StaffInfo, error) {
	var out struct {
		Token string    `json:"token"`
		Staff StaffInfo `json:"staff"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out.Staff, nil
}

// ActiveSessions polls the staff console queue.
func (c *Client) ActiveSessions(ctx context.Context) ([]*SessionSummary, error) {
	var out struct {
		Sessions []*SessionSummary `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/active-sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Connect assigns the logged-in staff member to a pending session.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/connect", map[string]string{
		"session_id": sessionID,
	}, nil)
}

// AdminChatHistory reads a transcript through the console surface.
func (c *Client) AdminChatHistory(ctx context.Context, sessionID string, since time.Time) (*History, error) {
	path := "/api/admin/chat-history/" + url.PathEscape(sessionID)
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339))
	}
	var history History
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// SendStaffMessage posts a staff reply into the assigned session.
// clientMsgID de-duplicates retries of the same logical message; pass ""
// to opt out.
func (c *Client) SendStaffMessage(ctx context.Context, sessionID, message, clientMsgID string) (*Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/api/admin/send-message", map[string]string{
		"session_id":    sessionID,
		"message":       message,
		"client_msg_id": clientMsgID,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// EndSession closes the staff member's active session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/end-session", map[string]string{
		"session_id": sessionID,
	}, nil)
}
