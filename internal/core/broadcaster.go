package core

import "github.com/vovakirdan/squadchat/internal/metrics"

// ConnectionRegistry resolves connection IDs to live clients.
type ConnectionRegistry interface {
	Connection(id string) (*Client, bool)
}

// Broadcaster fans committed messages out to the connections in a group's room.
type Broadcaster struct {
	router   *Router
	registry ConnectionRegistry
}

// NewBroadcaster creates a broadcaster over router and registry.
func NewBroadcaster(router *Router, registry ConnectionRegistry) *Broadcaster {
	return &Broadcaster{router: router, registry: registry}
}

// Publish delivers msg to every connection subscribed to its group right now.
// Delivery never blocks: a connection whose queue is full is dropped and closed.
// It returns the number of connections the message was enqueued to.
func (b *Broadcaster) Publish(msg Message) int {
	ev := &Event{Kind: EventNewMessage, GroupID: msg.GroupID, Message: msg}

	delivered := 0
	for _, connID := range b.router.MembersOf(msg.GroupID) {
		client, ok := b.registry.Connection(connID)
		if !ok {
			continue
		}
		if client.Deliver(ev) {
			delivered++
			metrics.BroadcastDeliveries.Inc()
		} else {
			metrics.BroadcastDropped.Inc()
		}
	}
	return delivered
}
