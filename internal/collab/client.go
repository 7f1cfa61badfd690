package collab

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/penflowhq/penflow/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer      = 64
	defaultMaxMessageBytes = int64(1 << 20) // 1 MiB
)

// Client is one websocket participant, bound to a single document session
// for its whole lifetime. Outbound messages go through a buffered channel so
// a slow socket never blocks the session; the write pump owns all socket
// writes.
type Client struct {
	id      string
	docID   string
	user    UserInfo
	socket  *websocket.Conn
	session *DocumentSession
	hub     *Hub

	send chan Envelope
	done chan struct{}
	once sync.Once
}

func newClient(hub *Hub, socket *websocket.Conn, docID string, user UserInfo) *Client {
	buffer := hub.sendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Client{
		id:     uuid.NewString(),
		docID:  docID,
		user:   user,
		socket: socket,
		hub:    hub,
		send:   make(chan Envelope, buffer),
		done:   make(chan struct{}),
	}
}

// enqueue offers a message to the client without blocking. It reports false
// when the buffer is full or the client is closing; callers treat a full
// buffer as a dead peer.
func (c *Client) enqueue(msg Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Client) readLoop() {
	defer c.close()

	limit := c.hub.maxMessageBytes
	if limit <= 0 {
		limit = defaultMaxMessageBytes
	}
	c.socket.SetReadLimit(limit)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected close",
					zap.String("doc_id", c.docID),
					zap.String("user_id", c.user.UserID),
					zap.Error(err),
				)
			}
			return
		}

		if len(payload) == 0 {
			continue
		}

		var msg Envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			// One malformed frame must not cost the whole session.
			c.hub.log.Debug("dropping malformed frame",
				zap.String("doc_id", c.docID),
				zap.String("user_id", c.user.UserID),
				zap.Error(err),
			)
			continue
		}

		c.hub.handleMessage(c, msg)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close runs the single disconnect path: deregister from the session,
// announce the departure, tear down the session if it emptied, and release
// the socket. Safe to call from any goroutine, any number of times.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.handleDisconnect(c)
		_ = c.socket.Close()
		metrics.ActiveConnections.Dec()
	})
}
