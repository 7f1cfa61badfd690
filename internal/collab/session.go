package collab

import (
	"errors"
	"sync"

	"github.com/penflowhq/penflow/internal/ot"
)

var (
	// ErrStaleBeyondHistory reports an operation older than the retained
	// operation log; the client must resync from a snapshot.
	ErrStaleBeyondHistory = errors.New("collab: operation predates retained history")

	// ErrFutureVersion reports an operation claiming a version the session
	// has not reached yet.
	ErrFutureVersion = errors.New("collab: operation version is ahead of the session")
)

// DocumentSession owns all mutable collaborative state for one document: the
// authoritative content snapshot, the version counter, the operation log and
// the connected participants. Every mutation goes through its mutex so the
// log invariant holds: the entry at version v records the transition from
// version v to v+1.
type DocumentSession struct {
	docID string

	mu           sync.Mutex
	content      string
	version      int
	log          []ot.Operation
	logBase      int // version of the first retained log entry
	historyLimit int // 0 means unbounded

	clients  map[*Client]struct{}
	presence map[string]UserInfo // keyed by userId, independent of socket count
}

func newSession(docID, seed string, historyLimit int) *DocumentSession {
	return &DocumentSession{
		docID:        docID,
		content:      seed,
		historyLimit: historyLimit,
		clients:      make(map[*Client]struct{}),
		presence:     make(map[string]UserInfo),
	}
}

// DocID returns the immutable document id this session serves.
func (s *DocumentSession) DocID() string { return s.docID }

// Snapshot returns a consistent (content, version) pair.
func (s *DocumentSession) Snapshot() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content, s.version
}

// Submit applies op to the session, transforming it first when it was
// authored against an older version. It returns the operation as applied and
// the resulting version, both ready for broadcast.
func (s *DocumentSession) Submit(op ot.Operation) (ot.Operation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.Version > s.version {
		return ot.Operation{}, 0, ErrFutureVersion
	}
	if op.Version < s.logBase {
		return ot.Operation{}, 0, ErrStaleBeyondHistory
	}

	if op.Version < s.version {
		for _, applied := range s.log[op.Version-s.logBase : s.version-s.logBase] {
			op = ot.Transform(op, applied)
		}
	}

	s.content = ot.Apply(s.content, op)
	s.log = append(s.log, op)
	s.version++
	s.trimLocked()

	return op, s.version, nil
}

// ReplaceContent installs a full content snapshot, the coarse fallback sync
// path. The version counter and operation log are left alone.
func (s *DocumentSession) ReplaceContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
}

func (s *DocumentSession) trimLocked() {
	if s.historyLimit <= 0 || len(s.log) <= s.historyLimit {
		return
	}
	drop := len(s.log) - s.historyLimit
	s.log = append(s.log[:0:0], s.log[drop:]...)
	s.logBase += drop
}

// addClient registers a connection and records its user's presence. It
// returns the updated roster and whether the user is newly present (a second
// socket from the same user does not re-announce them).
func (s *DocumentSession) addClient(c *Client) (roster []UserInfo, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c] = struct{}{}
	if _, ok := s.presence[c.user.UserID]; !ok {
		s.presence[c.user.UserID] = c.user
		joined = true
	}
	return s.rosterLocked(), joined
}

// removeClient deregisters a connection. left reports whether this was the
// user's last socket; empty reports whether the session has no connections
// at all and should be destroyed.
func (s *DocumentSession) removeClient(c *Client) (roster []UserInfo, left, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; !ok {
		return s.rosterLocked(), false, len(s.clients) == 0
	}
	delete(s.clients, c)

	left = true
	for other := range s.clients {
		if other.user.UserID == c.user.UserID {
			left = false
			break
		}
	}
	if left {
		delete(s.presence, c.user.UserID)
	}

	return s.rosterLocked(), left, len(s.clients) == 0
}

// Participants returns the deduplicated presence roster.
func (s *DocumentSession) Participants() []UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

// ConnectionCount returns the number of live sockets in the session.
func (s *DocumentSession) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *DocumentSession) rosterLocked() []UserInfo {
	roster := make([]UserInfo, 0, len(s.presence))
	for _, user := range s.presence {
		roster = append(roster, user)
	}
	return roster
}

// clientList snapshots the connection set so callers can fan out without
// holding the session lock across socket buffers.
func (s *DocumentSession) clientList() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		list = append(list, c)
	}
	return list
}
