package core

import (
	"sync"
	"sync/atomic"
)

const defaultClientBuffer = 16

// Client is a live connection as seen by the core layer.
// One user may hold several clients; rooms are keyed by client ID.
type Client struct {
	ID       string
	UserID   int64
	Name     string
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
	slow      atomic.Bool
}

// NewClient constructs a client with initialized channels.
// bufferSize bounds the outbound queue; zero picks a default.
func NewClient(id string, userID int64, name string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = defaultClientBuffer
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, bufferSize),
		Events:   make(chan *Event, bufferSize),
		done:     make(chan struct{}),
	}
}

// Deliver enqueues an event without blocking. When the queue is full the
// client is marked slow and closed so its transport disconnects it.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		c.slow.Store(true)
		c.Close()
		return false
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Slow reports whether the client was closed because it fell behind.
func (c *Client) Slow() bool {
	return c.slow.Load()
}
