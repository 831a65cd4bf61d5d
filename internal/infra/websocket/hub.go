package websocket

import (
	"context"
	"sync"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/internal/metrics"
	"github.com/dealroom/api/pkg/logger"
)

const (
	broadcastBufferSize = 256

	// DefaultMaxSubscriptions caps the channels one client may join.
	DefaultMaxSubscriptions = 50
)

// Hub tracks connected clients and their channel subscriptions, and fans
// change events out to them.
type Hub struct {
	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	broadcast  chan *broadcastMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	maxSubscriptions int
	logger           *logger.Logger
	mu               sync.RWMutex
}

type broadcastMessage struct {
	channel string
	message *Message
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMaxSubscriptions caps the channels one client may join.
func WithMaxSubscriptions(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxSubscriptions = n
		}
	}
}

// NewHub creates a new Hub. Call Run to start it.
func NewHub(log *logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:          make(map[*Client]bool),
		channels:         make(map[string]map[*Client]bool),
		broadcast:        make(chan *broadcastMessage, broadcastBufferSize),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		done:             make(chan struct{}),
		maxSubscriptions: DefaultMaxSubscriptions,
		logger:           log.With("component", "stream_hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.closeOnce.Do(func() { close(h.done) })
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.StreamClients.Set(float64(total))

			h.logger.Debug("client registered", "client_id", client.ID, "actor_id", client.ActorID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.removeClientFromAllChannels(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.StreamClients.Set(float64(total))

			h.logger.Debug("client unregistered", "client_id", client.ID)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

// RegisterClient hands a new client to the hub. A client arriving after
// shutdown is closed.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// UnregisterClient removes a client and its subscriptions.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues msg for every client subscribed to channel. It never
// blocks: when the queue is full the message is dropped.
func (h *Hub) Broadcast(channel string, msg *Message) bool {
	select {
	case h.broadcast <- &broadcastMessage{channel: channel, message: msg}:
		metrics.RecordStreamEvent(metrics.StreamEventSent)
		return true
	default:
		metrics.RecordStreamEvent(metrics.StreamEventDropped)
		h.logger.Warn("stream broadcast queue full, dropping event", "channel", channel)
		return false
	}
}

// PermissionsChanged publishes a committed change on the deal channel and on
// the participant channel.
func (h *Hub) PermissionsChanged(change app.PermissionChange) {
	for _, channel := range []string{
		MakeChannel(ChannelTypeDeal, change.DealID),
		MakeChannel(ChannelTypeParticipant, change.ParticipantID),
	} {
		msg := NewMessage(MessageTypeEvent).
			WithChannel(channel).
			WithData(change)
		h.Broadcast(channel, msg)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns the number of clients subscribed to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) broadcastToChannel(msg *broadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.channels[msg.channel]))
	for client := range h.channels[msg.channel] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}
	for _, client := range clients {
		client.SendMessage(msg.message)
	}

	h.logger.Debug("broadcast message",
		"channel", msg.channel,
		"recipients", len(clients),
	)
}

// removeClientFromAllChannels must be called with mu held.
func (h *Hub) removeClientFromAllChannels(client *Client) {
	for channel, clients := range h.channels {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.channels = make(map[string]map[*Client]bool)
	metrics.StreamClients.Set(0)
}
