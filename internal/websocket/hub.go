// Package websocket broadcasts processing and registry events to dashboard
// clients.
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
	// Buffered events per client
	sendBuffer = 256
)

// HubConfig contains configuration for the WebSocket hub
type HubConfig struct {
	BroadcastRecords     bool
	BroadcastRegistry    bool
	BroadcastConnections bool
	// Username enables basic auth when set
	Username string
	Password string
	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// Hub maintains the set of active clients and broadcasts events to them.
// All client set changes happen on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	direct     chan directed
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	config   HubConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// NewHub creates a new WebSocket hub
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, sendBuffer),
		direct:     make(chan directed, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     config,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run handles registration and broadcasting until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.mu.Lock()
			h.stats.TotalConnections++
			h.stats.ActiveConnections = int64(len(h.clients))
			h.stats.LastConnectionTime = time.Now()
			h.mu.Unlock()

			h.logger.Info("Client connected",
				zap.String("client_id", client.ID),
				zap.String("client_ip", client.IP),
				zap.Int("active_connections", len(h.clients)))
			h.connectionEvent("connected", client)

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Info("Client disconnected",
					zap.String("client_id", client.ID),
					zap.Int("active_connections", len(h.clients)))
				h.connectionEvent("disconnected", client)
			}

		case event := <-h.broadcast:
			h.deliver(event)

		case d := <-h.direct:
			if h.clients[d.client] {
				h.push(d.client, d.event)
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.mu.Lock()
	h.stats.ActiveConnections = int64(len(h.clients))
	h.mu.Unlock()
}

// connectionEvent tells the other clients about a connection change
func (h *Hub) connectionEvent(action string, client *Client) {
	if !h.config.BroadcastConnections {
		return
	}
	event := Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
		},
	}
	for other := range h.clients {
		if other != client {
			h.send(other, event)
		}
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()
	h.mu.Unlock()

	for client := range h.clients {
		h.send(client, event)
	}
}

// send queues an event for a subscribed client. Only called from Run.
func (h *Hub) send(client *Client, event Event) {
	if client.wants(event.Type) {
		h.push(client, event)
	}
}

// push queues an event, dropping clients that fall behind
func (h *Hub) push(client *Client, event Event) {
	select {
	case client.Send <- event:
		h.mu.Lock()
		h.stats.TotalMessages++
		h.mu.Unlock()
	default:
		h.logger.Warn("Client send channel full, closing connection",
			zap.String("client_id", client.ID))
		h.drop(client)
	}
}

// Broadcast queues an event for every subscribed client when its type is
// enabled. It never blocks.
func (h *Hub) Broadcast(eventType EventType, data interface{}) {
	if !h.enabled(eventType) {
		return
	}
	event := Event{Type: eventType, Timestamp: time.Now(), Data: data}

	select {
	case h.broadcast <- event:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(eventType)))
	}
}

func (h *Hub) enabled(eventType EventType) bool {
	switch eventType {
	case EventTypeRecordProcessed, EventTypeRecordDecrypted, EventTypeAICompleted:
		return h.config.BroadcastRecords
	case EventTypeRegistryChanged:
		return h.config.BroadcastRegistry
	case EventTypeConnection:
		return h.config.BroadcastConnections
	default:
		return false
	}
}

// HandleWebSocket upgrades the request and attaches the client to the hub
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="asset-privacy"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan Event, sendBuffer),
		ConnectedAt: time.Now(),
		IP:          ClientIP(r),
		UserAgent:   r.UserAgent(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.config.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write WebSocket message",
					zap.String("client_id", client.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.touch()
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return
		}
		var subscription SubscriptionRequest
		if err := json.Unmarshal(data, &subscription); err == nil {
			client.subscribe(&subscription)
			h.logger.Debug("Client subscription updated",
				zap.String("client_id", client.ID),
				zap.Int("event_types", len(subscription.Events)))
		}
	case "ping":
		client.touch()
		h.reply(client, Event{
			Type:      EventTypePong,
			Timestamp: time.Now(),
			Data:      map[string]string{"message": "pong"},
		})
	}
}

// reply queues an event for one client through Run, which owns Send
func (h *Hub) reply(client *Client, event Event) {
	select {
	case h.direct <- directed{client: client, event: event}:
	default:
	}
}

type directed struct {
	client *Client
	event  Event
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// ClientIP extracts the client address, preferring proxy headers
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
