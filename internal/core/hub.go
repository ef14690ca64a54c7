package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/metrics"
)

// Hub coordinates live clients with the message log, the room router and the broadcaster.
// Registration goes through the Run loop; each registered client gets its own
// goroutine that executes its commands in order.
type Hub struct {
	log         *MessageLog
	authority   *Authority
	router      *Router
	broadcaster *Broadcaster
	logger      *zerolog.Logger

	// roomLocks serializes authorized joins with evictions of the same group.
	roomLocks *groupLocks

	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	wg         sync.WaitGroup
}

// NewHub creates a hub over the message log and membership authority.
// A nil logger disables logging.
func NewHub(log *MessageLog, authority *Authority, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		log:        log,
		authority:  authority,
		router:     NewRouter(),
		logger:     logger,
		roomLocks:  newGroupLocks(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
	h.broadcaster = NewBroadcaster(h.router, h)
	return h
}

// Run processes registrations until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// RegisterClient adds a client to the hub. It is a no-op once the hub stopped.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
	}
}

// UnregisterClient removes a client, leaves all its rooms and closes it.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Connection returns the registered client with the given ID.
func (h *Hub) Connection(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Router exposes the hub's room router.
func (h *Hub) Router() *Router {
	return h.router
}

// SendMessage appends a message on behalf of userID and broadcasts it once committed.
// REST and live sends both go through here.
func (h *Hub) SendMessage(ctx context.Context, groupID, userID int64, body string) (*Message, error) {
	msg, err := h.log.Append(ctx, groupID, userID, body, func(m Message) {
		h.broadcaster.Publish(m)
	})
	if err != nil {
		h.logFailure(err, "send_message", groupID, userID, "")
		return nil, err
	}
	return msg, nil
}

// EvictUser removes every connection of userID from groupID's room.
// Used when the user leaves the group so their live sessions stop receiving it.
// A join of the same group that is still authorizing finishes first and is evicted too.
func (h *Hub) EvictUser(groupID, userID int64) int {
	seq := h.roomLocks.lock(groupID)
	defer seq.unlock()

	h.mu.RLock()
	conns := make([]string, 0)
	for id, c := range h.clients {
		if c.UserID == userID {
			conns = append(conns, id)
		}
	}
	h.mu.RUnlock()

	evicted := 0
	for _, id := range conns {
		if h.router.Leave(id, groupID) {
			evicted++
		}
	}
	return evicted
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, exists := h.clients[c.ID]; exists {
		h.mu.Unlock()
		h.logger.Warn().Str("conn_id", c.ID).Msg("duplicate client id, closing")
		c.Close()
		return
	}
	h.clients[c.ID] = c
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	h.logger.Debug().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("client registered")

	h.wg.Add(1)
	go h.serveClient(ctx, c)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.ID]
	if ok && cur == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()

	left := h.router.LeaveAll(c.ID)
	c.Close()

	if ok && cur == c {
		metrics.LiveConnections.Dec()
		h.logger.Debug().
			Str("conn_id", c.ID).
			Int64("user_id", c.UserID).
			Int("rooms_left", len(left)).
			Msg("client unregistered")
	}
}

func (h *Hub) shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.removeClient(c)
	}
	h.wg.Wait()
}

func (h *Hub) serveClient(ctx context.Context, c *Client) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			if cmd == nil {
				continue
			}
			h.handleCommand(ctx, c, cmd)
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinGroup:
		h.join(ctx, c, cmd)
	case CommandLeaveGroup:
		h.router.Leave(c.ID, cmd.GroupID)
	case CommandSendMessage:
		if _, err := h.log.Append(ctx, cmd.GroupID, c.UserID, cmd.Text, func(m Message) {
			h.broadcaster.Publish(m)
		}); err != nil {
			h.reject(c, cmd, err)
		}
	default:
		h.reject(c, cmd, validationError(ErrCodeBadRequest, "unknown command"))
	}
}

// join subscribes c to the group's room if its user is a member. The check and
// the subscription happen under the group's room lock, so an eviction running
// concurrently either sees the subscription or runs before the membership check.
func (h *Hub) join(ctx context.Context, c *Client, cmd *Command) {
	seq := h.roomLocks.lock(cmd.GroupID)
	defer seq.unlock()

	if err := h.authority.Authorize(ctx, cmd.GroupID, c.UserID); err != nil {
		h.reject(c, cmd, err)
		return
	}
	h.router.Join(c.ID, cmd.GroupID)
}

// reject sends an error event to the issuing client only.
func (h *Hub) reject(c *Client, cmd *Command, err error) {
	h.logFailure(err, cmd.Kind.String(), cmd.GroupID, c.UserID, c.ID)
	c.Deliver(errorEvent(cmd.GroupID, AsCoreError(err)))
}

func (h *Hub) logFailure(err error, op string, groupID, userID int64, connID string) {
	ce := AsCoreError(err)
	ev := h.logger.Warn()
	if ce.Code == ErrCodeUnavailable {
		ev = h.logger.Error()
	}
	ev = ev.Err(err).
		Str("op", op).
		Str("code", ce.Code).
		Int64("group_id", groupID).
		Int64("user_id", userID)
	if connID != "" {
		ev = ev.Str("conn_id", connID)
	}
	ev.Msg("command failed")
}
