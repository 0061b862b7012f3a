package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// fakeAPI serves canned envelope responses keyed by "METHOD path"
type fakeAPI struct {
	responses map[string]string
	statuses  map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: make(map[string]string), statuses: make(map[string]int)}
}

func (f *fakeAPI) on(method, path string, body string) {
	f.responses[method+" "+path] = body
}

func (f *fakeAPI) onStatus(method, path string, status int, body string) {
	f.on(method, path, body)
	f.statuses[method+" "+path] = status
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, ok := f.responses[key]
	if !ok {
		writeEnvelope(w, http.StatusNotFound,
			`{"success":false,"error":{"code":"NOT_FOUND","message":"no stub for `+key+`"}}`)
		return
	}
	status := http.StatusOK
	if s, ok := f.statuses[key]; ok {
		status = s
	}
	writeEnvelope(w, status, body)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token")
}

const convBody = `{"success":true,"data":{"id":"conv-1","type":"direct","unread_count":0}}`

func TestSendMessageAppendsOnlyAfterConfirmation(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations/conv-1", convBody)
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[],"total":0,"has_more":false}}`)
	api.on("POST", "/conversations/conv-1/messages",
		`{"success":true,"data":{"id":"msg-1","conversation_id":"conv-1","content":"hello","status":"sent","created_at":"2026-03-01T10:00:00Z"}}`)
	c := newTestClient(t, api)

	_, err := c.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)

	msg, err := c.SendMessage(context.Background(), "conv-1", &domain.SendMessageRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msg.ID)

	state := c.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "msg-1", state.Messages[0].ID)
}

func TestSendMessageRejectedLeavesStateUntouched(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations/conv-1", convBody)
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[],"total":0,"has_more":false}}`)
	api.onStatus("POST", "/conversations/conv-1/messages", http.StatusTooManyRequests,
		`{"success":false,"error":{"code":"RATE_LIMITED","message":"slow down"}}`)
	c := newTestClient(t, api)

	_, err := c.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)

	_, err = c.SendMessage(context.Background(), "conv-1", &domain.SendMessageRequest{Content: "hello"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "RATE_LIMITED", apiErr.Code)

	// Nothing was inserted optimistically
	assert.Empty(t, c.Snapshot().Messages)
}

func TestLoadOlderMessagesPrepends(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations/conv-1", convBody)
	// Newest page first; the next page is anchored at msg-2
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[{"id":"msg-2","content":"two"},{"id":"msg-3","content":"three"}],"total":3,"has_more":true,"next_cursor":"msg-2"}}`)
	c := newTestClient(t, api)

	_, err := c.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)

	// Swap the stub so the cursor request returns the older page
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[{"id":"msg-1","content":"one"}],"total":3,"has_more":false}}`)

	older, err := c.LoadOlderMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, older, 1)

	state := c.Snapshot()
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "msg-1", state.Messages[0].ID)
	assert.Equal(t, "msg-2", state.Messages[1].ID)
	assert.Equal(t, "msg-3", state.Messages[2].ID)
	assert.False(t, state.HasMore)

	// Exhausted history is a no-op, not a request
	older, err = c.LoadOlderMessages(context.Background())
	require.NoError(t, err)
	assert.Nil(t, older)
}

func TestMarkAsReadClearsLocallyThenResyncs(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations",
		`{"success":true,"data":[{"id":"conv-1","type":"direct","unread_count":5},{"id":"conv-2","type":"direct","unread_count":2}],"meta":{"page":1,"limit":20,"total":2,"total_pages":1}}`)
	api.on("GET", "/messages/unread-count",
		`{"success":true,"data":{"unread_count":7}}`)
	c := newTestClient(t, api)

	_, err := c.LoadConversations(context.Background(), 1, 20)
	require.NoError(t, err)
	_, err = c.RefreshUnreadTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Snapshot().UnreadTotal)

	// After the server processes the read, only conv-2's unread remains
	api.on("PATCH", "/conversations/conv-1/read",
		`{"success":true,"data":{"read":true}}`)
	api.on("GET", "/messages/unread-count",
		`{"success":true,"data":{"unread_count":2}}`)

	require.NoError(t, c.MarkAsRead(context.Background(), "conv-1", "msg-9"))

	state := c.Snapshot()
	assert.Equal(t, int64(2), state.UnreadTotal)
	assert.Equal(t, 0, state.Conversations[0].UnreadCount)
	assert.Equal(t, 2, state.Conversations[1].UnreadCount)
}

func TestDeleteMessageFlagsLocalEntry(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations/conv-1", convBody)
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[{"id":"msg-1","content":"secret"}],"total":1,"has_more":false}}`)
	api.on("DELETE", "/conversations/conv-1/messages/msg-1",
		`{"success":true,"data":{"deleted":true}}`)
	c := newTestClient(t, api)

	_, err := c.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)

	require.NoError(t, c.DeleteMessage(context.Background(), "conv-1", "msg-1"))

	state := c.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.True(t, state.Messages[0].IsDeleted)
	assert.Nil(t, state.Messages[0].Content)
}

func TestLeaveConversationDropsState(t *testing.T) {
	api := newFakeAPI()
	api.on("GET", "/conversations/conv-1", convBody)
	api.on("GET", "/conversations/conv-1/messages",
		`{"success":true,"data":{"messages":[{"id":"msg-1"}],"total":1,"has_more":false}}`)
	api.on("DELETE", "/conversations/conv-1",
		`{"success":true,"data":{"message":"left"}}`)
	c := newTestClient(t, api)

	_, err := c.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)

	require.NoError(t, c.LeaveConversation(context.Background(), "conv-1"))

	state := c.Snapshot()
	assert.Empty(t, state.Conversations)
	assert.Empty(t, state.ActiveConversationID)
	assert.Empty(t, state.Messages)
}

func TestUnreadPolling(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/unread-count" {
			writeEnvelope(w, http.StatusNotFound, `{"success":false,"error":{"code":"NOT_FOUND","message":"x"}}`)
			return
		}
		calls.Add(1)
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"unread_count":4}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.StartUnreadPolling(ctx, 20*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.StopPolling()

	assert.GreaterOrEqual(t, calls.Load(), int64(3))
	assert.Equal(t, int64(4), c.Snapshot().UnreadTotal)
}

func TestStopPollingIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"unread_count":0}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token")

	// Stopping before polling ever started is a no-op
	c.StopPolling()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartUnreadPolling(ctx, 20*time.Millisecond)

	assert.NotPanics(t, func() {
		c.StopPolling()
		c.StopPolling()
	})
}
