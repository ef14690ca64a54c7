package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/squadchat/internal/store"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory message store and membership directory.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	groups  map[int64]map[int64]bool
	msgs    []*store.Message
	failing bool
	// failAppend fails only AppendMessage, after membership checks pass.
	failAppend bool
	// appendDelay slows AppendMessage down to widen race windows.
	appendDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{groups: make(map[int64]map[int64]bool)}
}

func (m *memStore) addMember(groupID int64, userIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[groupID]
	if !ok {
		members = make(map[int64]bool)
		m.groups[groupID] = members
	}
	for _, id := range userIDs {
		members[id] = true
	}
}

func (m *memStore) removeMember(groupID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups[groupID], userID)
}

func (m *memStore) setFailing(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = v
}

func (m *memStore) count(groupID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.GroupID == groupID {
			n++
		}
	}
	return n
}

func (m *memStore) GroupExists(_ context.Context, groupID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false, errInjected
	}
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *memStore) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false, errInjected
	}
	return m.groups[groupID][userID], nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *store.Message) error {
	if m.appendDelay > 0 {
		time.Sleep(m.appendDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing || m.failAppend {
		return errInjected
	}
	m.nextID++
	msg.ID = m.nextID
	msg.Username = "user"
	cp := *msg
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *memStore) ListMessages(_ context.Context, groupID int64, limit, offset int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errInjected
	}

	var desc []*store.Message
	for _, msg := range m.msgs {
		if msg.GroupID == groupID {
			desc = append(desc, msg)
		}
	}
	sort.Slice(desc, func(i, j int) bool { return desc[i].ID > desc[j].ID })

	if offset >= len(desc) {
		return nil, nil
	}
	end := offset + limit
	if end > len(desc) {
		end = len(desc)
	}
	page := append([]*store.Message(nil), desc[offset:end]...)
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

type fixture struct {
	store     *memStore
	authority *Authority
	log       *MessageLog
	history   *History
	hub       *Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newMemStore()
	return newFixtureWithDirectory(t, st, st)
}

// newFixtureWithDirectory answers membership from dir instead of st.
func newFixtureWithDirectory(t *testing.T, st *memStore, dir MembershipReader) *fixture {
	t.Helper()

	authority := NewAuthority(dir)
	msgLog := NewMessageLog(st, authority, LogConfig{MaxMessageLength: 20, MaxPageSize: 100})
	return &fixture{
		store:     st,
		authority: authority,
		log:       msgLog,
		history:   NewHistory(msgLog, authority),
		hub:       NewHub(msgLog, authority, nil),
	}
}

// runHub starts the fixture hub and stops it when the test ends.
func (f *fixture) runHub(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// connect registers a client and waits until the hub knows it.
func (f *fixture) connect(t *testing.T, id string, userID int64) *Client {
	t.Helper()

	c := NewClient(id, userID, id, 0)
	f.hub.RegisterClient(c)
	waitFor(t, func() bool {
		_, ok := f.hub.Connection(id)
		return ok
	})
	return c
}

// joinAndWait issues a join command and waits for the router to reflect it.
func (f *fixture) joinAndWait(t *testing.T, c *Client, groupID int64) {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinGroup, GroupID: groupID}
	waitFor(t, func() bool { return f.hub.Router().InRoom(c.ID, groupID) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

// mustEvent returns the next event of the given kind, skipping others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "event not received", "kind %v", kind)
			return nil
		}
	}
}

func expectNoEvent(t *testing.T, ch <-chan *Event, within time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		require.FailNow(t, "unexpected event", "%+v", ev)
	case <-time.After(within):
	}
}
