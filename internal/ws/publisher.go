package ws

// Publisher adapts the hub to the services' event-publishing interface
type Publisher struct {
	hub *Hub
}

// NewPublisher creates a Publisher backed by the hub
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// PublishToUsers fans an event out to each recipient's connections.
// Fire-and-forget: delivery is best effort and never blocks the caller
// beyond the hub's buffered channel.
func (p *Publisher) PublishToUsers(userIDs []string, eventType string, payload interface{}) {
	for _, id := range userIDs {
		p.hub.SendToUser(id, &Event{Type: eventType, Payload: payload})
	}
}
