package core

import (
	"sync"
	"time"
)

// groupSeq is a per-group critical section. The message log uses it for appends
// and remembers the last assigned timestamp so timestamps never go backwards in
// a group; the hub uses a separate set for room joins and evictions.
type groupSeq struct {
	mu   sync.Mutex
	last time.Time
}

// groupLocks hands out one groupSeq per group. Entries are kept for the
// process lifetime; there is one small struct per group that ever posted.
type groupLocks struct {
	mu   sync.Mutex
	seqs map[int64]*groupSeq
}

func newGroupLocks() *groupLocks {
	return &groupLocks{seqs: make(map[int64]*groupSeq)}
}

// lock acquires the critical section of groupID. Callers must Unlock the result.
func (g *groupLocks) lock(groupID int64) *groupSeq {
	g.mu.Lock()
	seq, ok := g.seqs[groupID]
	if !ok {
		seq = &groupSeq{}
		g.seqs[groupID] = seq
	}
	g.mu.Unlock()

	seq.mu.Lock()
	return seq
}

func (s *groupSeq) unlock() {
	s.mu.Unlock()
}

// stamp returns now, clamped so it is not before the previous stamp.
func (s *groupSeq) stamp(now time.Time) time.Time {
	if now.Before(s.last) {
		return s.last
	}
	return now
}
