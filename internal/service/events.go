package service

// EventPublisher pushes messaging events to connected clients. The live
// delivery layer (websocket hub, push relay) sits behind this interface;
// the services never wait on it and never track delivery state.
type EventPublisher interface {
	PublishToUsers(userIDs []string, eventType string, payload interface{})
}

// Event types published to the delivery layer
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventUnreadChanged  = "unread.changed"
)

// noopPublisher is used when no delivery layer is attached
type noopPublisher struct{}

func (noopPublisher) PublishToUsers([]string, string, interface{}) {}
