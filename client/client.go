// Package client is a Go consumer of the messaging API. It keeps UI-ready
// state (conversation list, active conversation, message history, unread
// totals) in memory and mutates it only after server confirmation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
)

// DefaultPollInterval is how often the unread badge re-syncs with the server
const DefaultPollInterval = 30 * time.Second

// APIError is a non-2xx response decoded from the API envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// State is a point-in-time snapshot of the client's local view
type State struct {
	Conversations        []*domain.ConversationResponse
	ActiveConversationID string
	Messages             []*domain.MessageResponse
	UnreadTotal          int64
	HasMore              bool
	NextCursor           string
}

// Client talks to the messaging API and maintains local state
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client

	mu    sync.RWMutex
	state State

	pollStop chan struct{}
	pollOnce sync.Once
}

// New creates a Client for the given API base URL (e.g. "https://api.example.org/api/v1")
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Snapshot returns a copy of the current local state
func (c *Client) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.state
	s.Conversations = append([]*domain.ConversationResponse(nil), c.state.Conversations...)
	s.Messages = append([]*domain.MessageResponse(nil), c.state.Messages...)
	return s
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Meta    *common.Meta      `json:"meta"`
	Error   *common.ErrorInfo `json:"error"`
}

// messagePage mirrors the server's history page payload
type messagePage struct {
	Messages   []*domain.MessageResponse `json:"messages"`
	Total      int64                     `json:"total"`
	HasMore    bool                      `json:"has_more"`
	NextCursor string                    `json:"next_cursor"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (*common.Meta, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Meta, nil
}

// LoadConversations fetches a page of the conversation list and replaces
// the local list.
func (c *Client) LoadConversations(ctx context.Context, page, limit int) ([]*domain.ConversationResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var conversations []*domain.ConversationResponse
	if _, err := c.do(ctx, http.MethodGet, path, nil, &conversations); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state.Conversations = conversations
	c.mu.Unlock()
	return conversations, nil
}

// CreateConversation starts a DM or group and prepends it to the local list
func (c *Client) CreateConversation(ctx context.Context, req *domain.CreateConversationRequest) (*domain.ConversationResponse, error) {
	var conversation domain.ConversationResponse
	if _, err := c.do(ctx, http.MethodPost, "/conversations", req, &conversation); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.upsertConversationLocked(&conversation)
	c.mu.Unlock()
	return &conversation, nil
}

// OpenConversation makes a conversation active and loads its newest page
// of history.
func (c *Client) OpenConversation(ctx context.Context, conversationID string) (*domain.ConversationResponse, error) {
	var conversation domain.ConversationResponse
	if _, err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID, nil, &conversation); err != nil {
		return nil, err
	}

	var page messagePage
	if _, err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil, &page); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state.ActiveConversationID = conversationID
	c.state.Messages = page.Messages
	c.state.HasMore = page.HasMore
	c.state.NextCursor = page.NextCursor
	c.upsertConversationLocked(&conversation)
	c.mu.Unlock()
	return &conversation, nil
}

// LoadOlderMessages fetches the page before the current cursor and prepends
// it to the local history.
func (c *Client) LoadOlderMessages(ctx context.Context) ([]*domain.MessageResponse, error) {
	c.mu.RLock()
	conversationID := c.state.ActiveConversationID
	cursor := c.state.NextCursor
	hasMore := c.state.HasMore
	c.mu.RUnlock()

	if conversationID == "" {
		return nil, fmt.Errorf("no active conversation")
	}
	if !hasMore {
		return nil, nil
	}

	path := "/conversations/" + conversationID + "/messages"
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	var page messagePage
	if _, err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Older messages go in front; pages arrive in chronological order
	c.state.Messages = append(append([]*domain.MessageResponse(nil), page.Messages...), c.state.Messages...)
	c.state.HasMore = page.HasMore
	c.state.NextCursor = page.NextCursor
	c.mu.Unlock()
	return page.Messages, nil
}

// SendMessage posts a message and appends the confirmed result to local
// state. There is no pre-send optimistic insert; the message appears only
// after the server acknowledges it.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	var message domain.MessageResponse
	if _, err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", req, &message); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state.ActiveConversationID == conversationID {
		c.state.Messages = append(c.state.Messages, &message)
	}
	for _, conv := range c.state.Conversations {
		if conv.ID == conversationID {
			conv.LastMessageAt = &message.CreatedAt
			if message.Content != nil {
				conv.LastMessagePreview = *message.Content
			}
			break
		}
	}
	c.mu.Unlock()
	return &message, nil
}

// EditMessage edits a message and replaces the local entry by id
func (c *Client) EditMessage(ctx context.Context, conversationID, messageID, content string) (*domain.MessageResponse, error) {
	var message domain.MessageResponse
	path := "/conversations/" + conversationID + "/messages/" + messageID
	if _, err := c.do(ctx, http.MethodPatch, path, &domain.EditMessageRequest{Content: content}, &message); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for i, m := range c.state.Messages {
		if m.ID == messageID {
			c.state.Messages[i] = &message
			break
		}
	}
	c.mu.Unlock()
	return &message, nil
}

// DeleteMessage soft-deletes a message and flags the local entry
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	path := "/conversations/" + conversationID + "/messages/" + messageID
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	for _, m := range c.state.Messages {
		if m.ID == messageID {
			m.IsDeleted = true
			m.Content = nil
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// React toggles a reaction and updates the local message's aggregates
func (c *Client) React(ctx context.Context, conversationID, messageID, emoji string) ([]domain.ReactionView, error) {
	var out struct {
		Reactions []domain.ReactionView `json:"reactions"`
	}
	path := "/conversations/" + conversationID + "/messages/" + messageID + "/reactions"
	if _, err := c.do(ctx, http.MethodPost, path, &domain.ReactRequest{Emoji: emoji}, &out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, m := range c.state.Messages {
		if m.ID == messageID {
			m.Reactions = out.Reactions
			break
		}
	}
	c.mu.Unlock()
	return out.Reactions, nil
}

// MarkAsRead clears the conversation's local unread count immediately, then
// re-syncs the authoritative total from the server.
func (c *Client) MarkAsRead(ctx context.Context, conversationID, messageID string) error {
	c.mu.Lock()
	for _, conv := range c.state.Conversations {
		if conv.ID == conversationID {
			c.state.UnreadTotal -= int64(conv.UnreadCount)
			if c.state.UnreadTotal < 0 {
				c.state.UnreadTotal = 0
			}
			conv.UnreadCount = 0
			break
		}
	}
	c.mu.Unlock()

	path := "/conversations/" + conversationID + "/read"
	if _, err := c.do(ctx, http.MethodPatch, path, &domain.MarkReadRequest{MessageID: messageID}, nil); err != nil {
		return err
	}

	_, err := c.RefreshUnreadTotal(ctx)
	return err
}

// RefreshUnreadTotal fetches the authoritative unread total
func (c *Client) RefreshUnreadTotal(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/messages/unread-count", nil, &out); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.state.UnreadTotal = out.UnreadCount
	c.mu.Unlock()
	return out.UnreadCount, nil
}

// LeaveConversation leaves and drops the conversation from local state
func (c *Client) LeaveConversation(ctx context.Context, conversationID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/conversations/"+conversationID, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	kept := c.state.Conversations[:0]
	for _, conv := range c.state.Conversations {
		if conv.ID != conversationID {
			kept = append(kept, conv)
		}
	}
	c.state.Conversations = kept
	if c.state.ActiveConversationID == conversationID {
		c.state.ActiveConversationID = ""
		c.state.Messages = nil
		c.state.HasMore = false
		c.state.NextCursor = ""
	}
	c.mu.Unlock()
	return nil
}

// StartUnreadPolling refreshes the unread total immediately and then on the
// given interval until StopPolling (or a zero interval defaults to 30s).
func (c *Client) StartUnreadPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c.pollOnce.Do(func() {
		stop := make(chan struct{})
		c.mu.Lock()
		c.pollStop = stop
		c.mu.Unlock()
		go func() {
			_, _ = c.RefreshUnreadTotal(ctx)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_, _ = c.RefreshUnreadTotal(ctx)
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// StopPolling halts the unread poll loop; safe to call repeatedly or
// before polling ever started.
func (c *Client) StopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

// upsertConversationLocked puts a conversation at the front of the list,
// replacing an existing entry; callers hold c.mu.
func (c *Client) upsertConversationLocked(conversation *domain.ConversationResponse) {
	kept := make([]*domain.ConversationResponse, 0, len(c.state.Conversations)+1)
	kept = append(kept, conversation)
	for _, conv := range c.state.Conversations {
		if conv.ID != conversation.ID {
			kept = append(kept, conv)
		}
	}
	c.state.Conversations = kept
}
