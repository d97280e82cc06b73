// Package events contains the WebSocket message contracts pushed to
// dashboard clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Dataset lifecycle
	MessageTypeDatasetReloaded   MessageType = "dataset:reloaded"
	MessageTypeDatasetLoadFailed MessageType = "dataset:load_failed"

	// Connection messages
	MessageTypeConnect MessageType = "connection"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage stamps a message of the given type
func NewMessage(msgType MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{Type: msgType, Timestamp: time.Now().UTC()},
		Data:        data,
	}
}

// DatasetReloaded is the payload of a dataset:reloaded message
type DatasetReloaded struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	DroppedRows int       `json:"dropped_rows"`
	LoadedAt    time.Time `json:"loaded_at"`
	MinPurchase time.Time `json:"min_purchase"`
	MaxPurchase time.Time `json:"max_purchase"`
	DurationMS  int64     `json:"duration_ms"`
}

// DatasetLoadFailed is the payload of a dataset:load_failed message
type DatasetLoadFailed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
	// Table is set when the failure is a missing input table
	Table string `json:"table,omitempty"`
}

// ConnectionStatus is sent to a client right after it registers
type ConnectionStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}
