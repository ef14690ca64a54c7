package core

import (
	"sync"

	"github.com/samber/lo"

	"github.com/vovakirdan/squadchat/internal/metrics"
)

// Router tracks which live connections are subscribed to which group rooms.
// Both directions are kept so a disconnect can leave every room in one step.
type Router struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]struct{}
	byConn map[string]map[int64]struct{}
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[int64]map[string]struct{}),
		byConn: make(map[string]map[int64]struct{}),
	}
}

// Join subscribes connID to groupID. Returns false if it was already subscribed.
func (r *Router) Join(connID string, groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[groupID]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[groupID] = room
	}
	if _, exists := room[connID]; exists {
		return false
	}
	room[connID] = struct{}{}

	groups, ok := r.byConn[connID]
	if !ok {
		groups = make(map[int64]struct{})
		r.byConn[connID] = groups
	}
	groups[groupID] = struct{}{}

	metrics.RoomSubscriptions.Inc()
	return true
}

// Leave unsubscribes connID from groupID. Returns false if it was not subscribed.
func (r *Router) Leave(connID string, groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, groupID)
}

// LeaveAll removes connID from every room and returns the groups it left.
func (r *Router) LeaveAll(connID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups := lo.Keys(r.byConn[connID])
	for _, groupID := range groups {
		r.leaveLocked(connID, groupID)
	}
	return groups
}

func (r *Router) leaveLocked(connID string, groupID int64) bool {
	room, ok := r.rooms[groupID]
	if !ok {
		return false
	}
	if _, exists := room[connID]; !exists {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, groupID)
	}

	if groups, ok := r.byConn[connID]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(r.byConn, connID)
		}
	}

	metrics.RoomSubscriptions.Dec()
	return true
}

// MembersOf returns a snapshot of the connections subscribed to groupID.
// The slice is owned by the caller.
func (r *Router) MembersOf(groupID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[groupID])
}

// Rooms returns the groups connID is subscribed to.
func (r *Router) Rooms(connID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byConn[connID])
}

// InRoom reports whether connID is subscribed to groupID.
func (r *Router) InRoom(connID string, groupID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[groupID][connID]
	return ok
}
