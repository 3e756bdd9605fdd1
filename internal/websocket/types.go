package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRecordProcessed is sent after a document was masked
	EventTypeRecordProcessed EventType = "record_processed"
	// EventTypeRecordDecrypted is sent after AI output was reconstructed
	EventTypeRecordDecrypted EventType = "record_decrypted"
	// EventTypeAICompleted is sent when an AI response was attached to a record
	EventTypeAICompleted EventType = "ai_completed"
	// EventTypeRegistryChanged is sent after a fund name was added or removed
	EventTypeRegistryChanged EventType = "registry_changed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients. Payloads carry counts,
// tokens and record IDs only, never original values.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// RecordEvent summarises a processing record
type RecordEvent struct {
	RecordID             string  `json:"record_id"`
	InputFile            string  `json:"input_file,omitempty"`
	TotalMaskedValues    int     `json:"total_masked_values"`
	TotalObfuscatedFunds int     `json:"total_obfuscated_funds"`
	TotalCharacters      int     `json:"total_characters"`
	TotalPages           int     `json:"total_pages"`
	ProcessingMS         float64 `json:"processing_ms"`
}

// DecryptEvent summarises a reconstruction
type DecryptEvent struct {
	RecordID  string `json:"record_id"`
	Requested int    `json:"requested"`
	Resolved  int    `json:"resolved"`
	Missing   int    `json:"missing"`
}

// AICompletedEvent summarises an AI call
type AICompletedEvent struct {
	RecordID       string  `json:"record_id"`
	Model          string  `json:"model,omitempty"`
	ResponseLength int     `json:"response_length"`
	DurationMS     float64 `json:"duration_ms"`
}

// RegistryEvent describes a registry mutation by placeholder
type RegistryEvent struct {
	Action         string `json:"action"` // "add", "remove"
	Status         string `json:"status"`
	Placeholder    string `json:"placeholder,omitempty"`
	FundCount      int    `json:"fund_count"`
	PersistWarning string `json:"persist_warning,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// SubscriptionRequest limits the event types a client receives
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.Mutex
	subscription *SubscriptionRequest
	lastPing     time.Time
}

func (c *Client) subscribe(s *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = s
	c.mu.Unlock()
}

func (c *Client) wants(t EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscription == nil || len(c.subscription.Events) == 0 {
		return true
	}
	for _, e := range c.subscription.Events {
		if e == t {
			return true
		}
	}
	return false
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}
