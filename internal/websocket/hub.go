// Package websocket pushes dataset lifecycle events to dashboard clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/events"
)

const sendBuffer = 64

// HubStats is a snapshot of hub activity
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

type outbound struct {
	msgType string
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	pingPeriod time.Duration
	pongWait   time.Duration
	metrics    *infrastructure.DashboardMetrics
	logger     *slog.Logger

	mu               sync.RWMutex
	running          bool
	quit             chan struct{}
	done             chan struct{}
	totalConnections int64
	messagesSent     int64
	messagesDropped  int64
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(cfg config.WebSocketConfig, metrics *infrastructure.DashboardMetrics, logger *slog.Logger) *Hub {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PongWait,
		metrics:    metrics,
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in a new goroutine. It is a no-op when running.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop terminates the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordWebSocketClient(ctx, 1)

			h.logger.Info("Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			msg := events.NewMessage(events.MessageTypeConnect, events.ConnectionStatus{
				Status:   "connected",
				Message:  "Connected to sales dashboard events",
				ClientID: client.id,
			})
			msg.TraceID = client.traceID
			if data, err := json.Marshal(msg); err == nil {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("Failed to send connection message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()
				h.metrics.RecordWebSocketClient(ctx, -1)

				h.logger.Info("Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case msg := <-h.broadcast:
			h.deliver(ctx, msg)
		}
	}
}

// deliver sends msg to every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) deliver(ctx context.Context, msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered, dropped := 0, 0
	for client := range h.clients {
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			dropped++
			close(client.send)
			delete(h.clients, client)
			h.metrics.RecordWebSocketClient(ctx, -1)
			h.logger.Warn("Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
	h.messagesSent += int64(delivered)
	h.messagesDropped += int64(dropped)
	h.metrics.RecordWebSocketBroadcast(ctx, msg.msgType, delivered, dropped)

	h.logger.Debug("Broadcast delivered",
		slog.String("type", msg.msgType),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

// Broadcast sends a message of the given type to every client. It never
// blocks: when the queue is full the message is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.Publish(events.NewMessage(events.MessageType(messageType), data))
}

// Publish broadcasts a prepared message
func (h *Hub) Publish(msg events.WebSocketMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msg.Type)))
		return
	}

	select {
	case h.broadcast <- outbound{msgType: string(msg.Type), payload: payload}:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.Warn("Broadcast queue full, message dropped",
			slog.String("message_type", string(msg.Type)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Running reports whether the hub loop is active
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stats returns current hub metrics
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesDropped:  h.messagesDropped,
	}
}
