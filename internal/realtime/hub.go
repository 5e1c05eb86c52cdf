package realtime

import (
	"context"
	"log/slog"
	"sync"

	"stashhub/internal/chat/broadcast"
)

// Hub fans messages out to websocket clients by channel name. Channel
// names are the same strings the broadcast gateway publishes on, so the
// relay can pipe pub/sub frames straight through.
//
// Each connection runs its own read/write goroutines; all shared state
// changes go through the hub's run loop.
type Hub struct {
	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan frame

	logger *slog.Logger

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

type subscription struct {
	client  *Client
	channel string
}

type frame struct {
	channel string
	payload []byte
}

func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[*Client]bool),
		channels:    make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan frame, 256),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case sub := <-h.subscribe:
			h.addSubscription(sub)
		case sub := <-h.unsubscribe:
			h.removeSubscription(sub)
		case f := <-h.broadcast:
			h.deliver(f)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

// Broadcast queues one payload for every subscriber of the channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	select {
	case h.broadcast <- frame{channel: channel, payload: payload}:
	default:
		h.logger.Warn("hub broadcast queue full, dropping frame", "channel", channel)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true

	// Every connection listens on its user's private channel so mention
	// notifications arrive without an explicit subscribe.
	personal := broadcast.UserChannel(client.userID)
	if _, ok := h.channels[personal]; !ok {
		h.channels[personal] = make(map[*Client]bool)
	}
	h.channels[personal][client] = true
	client.channels[personal] = true

	h.logger.Debug("websocket client connected", "user_id", client.userID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	for channel := range client.channels {
		h.dropFromChannel(client, channel)
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Debug("websocket client disconnected", "user_id", client.userID)
}

func (h *Hub) addSubscription(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sub.client]; !ok {
		return
	}
	if _, ok := h.channels[sub.channel]; !ok {
		h.channels[sub.channel] = make(map[*Client]bool)
	}
	h.channels[sub.channel][sub.client] = true
	sub.client.channels[sub.channel] = true
}

func (h *Hub) removeSubscription(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropFromChannel(sub.client, sub.channel)
}

func (h *Hub) dropFromChannel(client *Client, channel string) {
	if members, ok := h.channels[channel]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.channels, channel)
}

func (h *Hub) deliver(f frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[f.channel] {
		select {
		case client.send <- f.payload:
		default:
			h.logger.Warn("client send buffer full, dropping frame", "user_id", client.userID, "channel", f.channel)
		}
	}
}
