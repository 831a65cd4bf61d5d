package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dealroom/api/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one stream connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *logger.Logger

	ID string
	// ActorID is the informational X-Actor-ID of the upgrade request.
	ActorID string

	subscriptions map[string]bool
	subMu         sync.RWMutex

	closed bool
	mu     sync.Mutex
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, actorID string, log *logger.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		logger:        log.With("client_id", id),
		ID:            id,
		ActorID:       actorID,
		subscriptions: make(map[string]bool),
	}
}

// Subscribe records a channel subscription. It returns false when the
// client already follows the channel.
func (c *Client) Subscribe(channel string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subscriptions[channel] {
		return false
	}
	c.subscriptions[channel] = true
	return true
}

// Unsubscribe drops a channel subscription.
func (c *Client) Unsubscribe(channel string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if !c.subscriptions[channel] {
		return false
	}
	delete(c.subscriptions, channel)
	return true
}

// IsSubscribed checks if client is subscribed to a channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

func (c *Client) subscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// SendMessage queues msg for the write pump. Messages for a closed or slow
// client are dropped.
func (c *Client) SendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode stream message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message", "actor_id", c.ActorID)
	}
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	_ = c.conn.Close()
}

// ReadPump reads client messages until the connection fails.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(CodeInvalidMessage, "Invalid message format", "")
			continue
		}
		c.handleMessage(&msg)
	}
}

// WritePump writes queued messages and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message so clients can parse each independently
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypePing:
		c.SendMessage(NewMessage(MessageTypePong).WithRequestID(msg.RequestID))
	default:
		c.sendError(CodeUnknownMessageType, "Unknown message type: "+string(msg.Type), msg.RequestID)
	}
}

// channelRequest reads the channel from the data payload, falling back to
// the envelope fields.
func channelRequest(msg *Message) ChannelRequest {
	var req ChannelRequest
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &req)
	}
	if req.Channel == "" {
		req.Channel = msg.Channel
	}
	if req.RequestID == "" {
		req.RequestID = msg.RequestID
	}
	return req
}

func (c *Client) handleSubscribe(msg *Message) {
	req := channelRequest(msg)
	if !ValidChannel(req.Channel) {
		c.sendError(CodeInvalidChannel, "Channel must be deal:{id} or participant:{id}", req.RequestID)
		return
	}

	if !c.IsSubscribed(req.Channel) && c.subscriptionCount() >= c.hub.maxSubscriptions {
		c.logger.Warn("subscription limit exceeded", "max", c.hub.maxSubscriptions)
		c.sendError(CodeSubscriptionLimit, "Too many subscriptions", req.RequestID)
		return
	}

	if c.Subscribe(req.Channel) {
		c.hub.subscribeToChannel(c, req.Channel)
		c.logger.Debug("client subscribed", "channel", req.Channel)
	}

	c.SendMessage(NewMessage(MessageTypeSubscribed).
		WithChannel(req.Channel).
		WithRequestID(req.RequestID))
}

func (c *Client) handleUnsubscribe(msg *Message) {
	req := channelRequest(msg)
	if req.Channel == "" {
		c.sendError(CodeInvalidChannel, "Channel is required", req.RequestID)
		return
	}

	if c.Unsubscribe(req.Channel) {
		c.hub.unsubscribeFromChannel(c, req.Channel)
		c.logger.Debug("client unsubscribed", "channel", req.Channel)
	}

	c.SendMessage(NewMessage(MessageTypeUnsubscribed).
		WithChannel(req.Channel).
		WithRequestID(req.RequestID))
}

func (c *Client) sendError(code, message, requestID string) {
	c.SendMessage(NewMessage(MessageTypeError).
		WithData(ErrorData{Code: code, Message: message}).
		WithRequestID(requestID))
}
