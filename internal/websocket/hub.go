package websocket

import (
	"context"
	"encoding/json"

	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/metrics"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const (
	TypeReading = "reading"
	TypeAlert   = "alert"
	TypeAck     = "ack"
	TypeLoads   = "loads"
	TypeHistory = "history"

	broadcastBuffer = 64
	sendBuffer      = 32
)

// Message is the envelope every dashboard client receives.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.remove(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.logger.Debug().Str("remote", client.remoteAddr()).Msg("WebSocket client registered")

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
				h.logger.Debug().Str("remote", client.remoteAddr()).Msg("WebSocket client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					metrics.WebsocketDropped.Inc()
					h.logger.Warn().Str("remote", client.remoteAddr()).Msg("WebSocket client too slow, removing")
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Broadcast queues a message for all clients. It never blocks; when the
// hub falls behind the message is dropped.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := Encode(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to encode broadcast")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		metrics.WebsocketDropped.Inc()
		h.logger.Warn().Str("type", msgType).Msg("Broadcast queue full, dropping message")
	}
}

func (h *Hub) BroadcastReading(r monitor.SensorReading) {
	h.Broadcast(TypeReading, r)
}

func (h *Hub) AlertAppended(a monitor.Alert) {
	h.Broadcast(TypeAlert, a)
}

func (h *Hub) AlertAcknowledged(a monitor.Alert) {
	h.Broadcast(TypeAck, a)
}

func (h *Hub) LoadsChanged(c control.Change) {
	h.Broadcast(TypeLoads, c.State)
}

func Encode(msgType string, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload})
}
