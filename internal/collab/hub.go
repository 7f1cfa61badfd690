package collab

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/penflowhq/penflow/internal/ot"
	"github.com/penflowhq/penflow/pkg/logger"
	"github.com/penflowhq/penflow/pkg/metrics"
)

const mirrorTimeout = 2 * time.Second

// IdentityResolver resolves the bearer token presented at connect time into
// the user the connection acts as. Implementations treat the token format as
// their own concern; the hub only needs the outcome.
type IdentityResolver interface {
	Resolve(token string) (UserInfo, error)
}

// ResolverFunc adapts a function to the IdentityResolver interface.
type ResolverFunc func(token string) (UserInfo, error)

// Resolve implements IdentityResolver.
func (f ResolverFunc) Resolve(token string) (UserInfo, error) { return f(token) }

// DocumentGuard is an optional authorization hook consulted after identity
// resolution. Collaborative editing runs in shared mode when no guard is
// installed.
type DocumentGuard func(ctx context.Context, docID, userID string) error

// PresenceMirror publishes roster and cursor state for out-of-process
// observers. Calls are best-effort; failures never affect the session.
type PresenceMirror interface {
	Join(ctx context.Context, docID string, user UserInfo) error
	Leave(ctx context.Context, docID, userID string) error
	Cursor(ctx context.Context, docID string, user UserInfo, position int) error
}

// Hub runs the collaborative websocket protocol: it upgrades connections,
// walks them through the connect-time checks, and dispatches their messages
// against the session registry.
type Hub struct {
	registry *Registry
	resolver IdentityResolver
	guard    DocumentGuard
	presence PresenceMirror

	upgrader        websocket.Upgrader
	sendBuffer      int
	maxMessageBytes int64
	log             *zap.Logger
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithGuard installs an authorization hook at the connection boundary.
func WithGuard(guard DocumentGuard) HubOption {
	return func(h *Hub) { h.guard = guard }
}

// WithPresenceMirror publishes presence changes to an external observer.
func WithPresenceMirror(mirror PresenceMirror) HubOption {
	return func(h *Hub) { h.presence = mirror }
}

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(size int) HubOption {
	return func(h *Hub) { h.sendBuffer = size }
}

// WithMaxMessageBytes caps the size of inbound frames.
func WithMaxMessageBytes(limit int64) HubOption {
	return func(h *Hub) { h.maxMessageBytes = limit }
}

// NewHub constructs a hub over the provided registry and identity resolver.
func NewHub(registry *Registry, resolver IdentityResolver, opts ...HubOption) *Hub {
	h := &Hub{
		registry: registry,
		resolver: resolver,
		log:      logger.WithModule("collab"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the request and runs the connection until it closes. The
// connect-time failures use distinct close codes so clients can tell a bad
// link (4000) from a bad token (4001).
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, docID, token string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	docID = strings.TrimSpace(docID)
	if docID == "" {
		h.reject(conn, CloseInvalidDocument, "invalid document id")
		return
	}

	identity, err := h.resolver.Resolve(token)
	if err != nil {
		h.log.Warn("identity rejected", zap.String("doc_id", docID), zap.Error(err))
		h.reject(conn, CloseIdentityRejected, "identity not resolved")
		return
	}

	if h.guard != nil {
		if err := h.guard(r.Context(), docID, identity.UserID); err != nil {
			h.log.Warn("access denied",
				zap.String("doc_id", docID),
				zap.String("user_id", identity.UserID),
				zap.Error(err),
			)
			h.reject(conn, CloseAccessDenied, "access denied")
			return
		}
	}

	client := newClient(h, conn, docID, identity)
	session, roster, joined := h.registry.Attach(r.Context(), docID, client)
	client.session = session
	metrics.ActiveConnections.Inc()

	go client.writeLoop()

	// Roster refresh first, then the discrete join event; clients render
	// them differently.
	h.broadcast(session, rosterMessage(docID, roster), nil)
	h.broadcast(session, presenceMessage(TypeUserJoin, docID, identity), nil)
	if joined {
		h.mirrorJoin(docID, identity)
	}

	h.log.Info("client connected",
		zap.String("doc_id", docID),
		zap.String("user_id", identity.UserID),
		zap.Int("connections", session.ConnectionCount()),
	)

	client.readLoop()
}

func (h *Hub) handleMessage(c *Client, msg Envelope) {
	if msg.DocID != "" && msg.DocID != c.docID {
		// A connection speaks for exactly one document.
		return
	}

	switch msg.Type {
	case TypeJoin:
		// Legacy clients announce themselves explicitly; the connection
		// already joined at upgrade, so just refresh everyone.
		h.broadcast(c.session, rosterMessage(c.docID, c.session.Participants()), nil)
		h.broadcast(c.session, presenceMessage(TypeUserJoin, c.docID, c.user), nil)

	case TypeContentUpdate:
		if msg.Content == nil {
			return
		}
		c.session.ReplaceContent(*msg.Content)
		h.broadcast(c.session, Envelope{
			Type:     TypeContentUpdate,
			DocID:    c.docID,
			Content:  msg.Content,
			UserID:   c.user.UserID,
			Username: c.user.Username,
		}, c)

	case TypeOperation:
		h.handleOperation(c, msg)

	case TypeGetDocument:
		content, version := c.session.Snapshot()
		c.enqueue(snapshotMessage(c.docID, content, version))

	case TypeCursorPosition:
		if msg.CursorPosition == nil {
			return
		}
		h.broadcast(c.session, Envelope{
			Type:           TypeCursorUpdate,
			DocID:          c.docID,
			UserID:         c.user.UserID,
			Username:       c.user.Username,
			CursorPosition: msg.CursorPosition,
		}, c)
		h.mirrorCursor(c.docID, c.user, *msg.CursorPosition)

	default:
		h.log.Debug("dropping unknown message type",
			zap.String("type", msg.Type),
			zap.String("doc_id", c.docID),
		)
	}
}

func (h *Hub) handleOperation(c *Client, msg Envelope) {
	if msg.Position == nil || msg.Version == nil || msg.Content == nil {
		return
	}
	kind, ok := ot.ParseKind(msg.OperationType)
	if !ok {
		return
	}

	op := ot.Operation{
		Kind:     kind,
		Position: *msg.Position,
		Payload:  *msg.Content,
		Version:  *msg.Version,
	}

	applied, version, err := c.session.Submit(op)
	switch {
	case errors.Is(err, ErrStaleBeyondHistory):
		// Too old to transform; fall back to the coarse sync path.
		metrics.Operations.WithLabelValues(kind.String(), "resync").Inc()
		content, current := c.session.Snapshot()
		c.enqueue(snapshotMessage(c.docID, content, current))
		return
	case errors.Is(err, ErrFutureVersion):
		metrics.Operations.WithLabelValues(kind.String(), "dropped").Inc()
		h.log.Warn("dropping operation from the future",
			zap.String("doc_id", c.docID),
			zap.String("user_id", c.user.UserID),
			zap.Int("claimed_version", op.Version),
		)
		return
	case err != nil:
		metrics.Operations.WithLabelValues(kind.String(), "dropped").Inc()
		return
	}

	outcome := "applied"
	if op.Version < version-1 {
		outcome = "transformed"
	}
	metrics.Operations.WithLabelValues(kind.String(), outcome).Inc()

	// Noop deletes still broadcast: every client must observe the same
	// contiguous version stream.
	h.broadcast(c.session, Envelope{
		Type:          TypeOperation,
		DocID:         c.docID,
		OperationType: applied.Kind.String(),
		Position:      intPtr(applied.Position),
		Content:       strPtr(applied.Payload),
		Version:       intPtr(version),
		UserID:        c.user.UserID,
		Username:      c.user.Username,
	}, c)
}

// broadcast fans msg out to the session's connections, skipping except. The
// connection list is snapshotted first so no socket buffer is touched while
// the session lock is held; a peer whose buffer is full gets evicted rather
// than stalling the rest.
func (h *Hub) broadcast(s *DocumentSession, msg Envelope, except *Client) {
	for _, c := range s.clientList() {
		if c == except {
			continue
		}
		select {
		case <-c.done:
			continue
		default:
		}
		if !c.enqueue(msg) {
			metrics.SlowClientEvictions.Inc()
			h.log.Warn("evicting backpressured client",
				zap.String("doc_id", c.docID),
				zap.String("user_id", c.user.UserID),
			)
			go c.close()
		}
	}
}

// handleDisconnect is the single cleanup path for every way a connection can
// end: deregister, announce, and tear the session down if it emptied.
func (h *Hub) handleDisconnect(c *Client) {
	s := c.session
	if s == nil {
		return
	}

	roster, left, empty := s.removeClient(c)
	if empty {
		h.registry.drop(s)
	} else {
		h.broadcast(s, rosterMessage(c.docID, roster), nil)
		if left {
			h.broadcast(s, presenceMessage(TypeUserLeave, c.docID, c.user), nil)
		}
	}

	if left {
		h.mirrorLeave(c.docID, c.user.UserID)
	}

	h.log.Info("client disconnected",
		zap.String("doc_id", c.docID),
		zap.String("user_id", c.user.UserID),
		zap.Bool("session_destroyed", empty),
	)
}

func (h *Hub) reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func (h *Hub) mirrorJoin(docID string, user UserInfo) {
	if h.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.presence.Join(ctx, docID, user); err != nil {
			h.log.Debug("presence mirror join failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}()
}

func (h *Hub) mirrorLeave(docID, userID string) {
	if h.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.presence.Leave(ctx, docID, userID); err != nil {
			h.log.Debug("presence mirror leave failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}()
}

func (h *Hub) mirrorCursor(docID string, user UserInfo, position int) {
	if h.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.presence.Cursor(ctx, docID, user, position); err != nil {
			h.log.Debug("presence mirror cursor failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}()
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Host
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
