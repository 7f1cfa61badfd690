package collab

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/penflowhq/penflow/pkg/logger"
	"github.com/penflowhq/penflow/pkg/metrics"
)

// SeedFunc fetches persisted content to seed a brand-new session. Returning
// an error is not fatal: the session starts empty and the condition is
// logged for the surrounding application.
type SeedFunc func(ctx context.Context, docID string) (string, error)

// Registry maps document ids to live sessions. Sessions are created lazily
// on first connection and destroyed when the last connection leaves; the map
// lock is held only for lookups and inserts so unrelated documents never
// contend on each other's session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*DocumentSession

	seed         SeedFunc
	historyLimit int
	log          *zap.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithSeed installs the persistence collaborator used to seed new sessions.
func WithSeed(seed SeedFunc) RegistryOption {
	return func(r *Registry) { r.seed = seed }
}

// WithHistoryLimit caps the retained per-session operation log. Clients
// staler than the window are resynced from a snapshot instead of transformed.
func WithHistoryLimit(limit int) RegistryOption {
	return func(r *Registry) { r.historyLimit = limit }
}

// NewRegistry constructs an empty session registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*DocumentSession),
		log:      logger.WithModule("collab"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the live session for docID, creating it if none
// exists. Concurrent first connections to the same document observe exactly
// one session object.
func (r *Registry) GetOrCreate(ctx context.Context, docID string) *DocumentSession {
	r.mu.RLock()
	s := r.sessions[docID]
	r.mu.RUnlock()
	if s != nil {
		return s
	}

	// Seed outside the lock; a racing creator wins and the extra load is
	// discarded.
	seed := r.loadSeed(ctx, docID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s = r.sessions[docID]; s != nil {
		return s
	}

	s = newSession(docID, seed, r.historyLimit)
	r.sessions[docID] = s
	metrics.ActiveSessions.Inc()
	r.log.Info("session created",
		zap.String("doc_id", docID),
		zap.Int("seed_bytes", len(seed)),
	)
	return s
}

// Attach registers c with the live session for docID, creating one if none
// exists. GetOrCreate alone is not enough for joining: between the lookup and
// the client registration the last existing connection can disconnect and
// destroy the session, leaving the newcomer on an orphaned object while the
// registry hands out a fresh session for the same document. Attach closes
// that window by re-checking registration after the add and retrying on a
// stale session; once it returns, the session cannot be destroyed while c
// remains attached because drop re-checks the connection count.
func (r *Registry) Attach(ctx context.Context, docID string, c *Client) (s *DocumentSession, roster []UserInfo, joined bool) {
	for {
		s = r.GetOrCreate(ctx, docID)
		roster, joined = s.addClient(c)
		if r.Get(docID) == s {
			return s, roster, joined
		}
		// Lost the race against destroy-on-empty; unwind and retry.
		s.removeClient(c)
	}
}

// Get returns the live session for docID, or nil.
func (r *Registry) Get(docID string) *DocumentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[docID]
}

// Snapshot exposes the live (content, version) of an active session for
// checkpointing callers.
func (r *Registry) Snapshot(docID string) (content string, version int, ok bool) {
	s := r.Get(docID)
	if s == nil {
		return "", 0, false
	}
	content, version = s.Snapshot()
	return content, version, true
}

// SessionSnapshot is a point-in-time view of one live session.
type SessionSnapshot struct {
	DocID   string
	Content string
	Version int
}

// ActiveDocuments snapshots every live session, for periodic checkpointing.
func (r *Registry) ActiveDocuments() []SessionSnapshot {
	r.mu.RLock()
	sessions := make([]*DocumentSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		content, version := s.Snapshot()
		out = append(out, SessionSnapshot{DocID: s.DocID(), Content: content, Version: version})
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// drop removes the session if it is still the registered one and is empty.
// The emptiness re-check under the registry lock closes the race against a
// connection arriving between the caller's check and this call.
func (r *Registry) drop(s *DocumentSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[s.docID]
	if !ok || current != s || s.ConnectionCount() > 0 {
		return
	}

	delete(r.sessions, s.docID)
	metrics.ActiveSessions.Dec()
	r.log.Info("session destroyed", zap.String("doc_id", s.docID))
}

func (r *Registry) loadSeed(ctx context.Context, docID string) string {
	if r.seed == nil {
		return ""
	}
	content, err := r.seed(ctx, docID)
	if err != nil {
		r.log.Warn("seed content unavailable, starting empty",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return ""
	}
	return content
}
