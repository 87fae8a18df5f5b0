// Package main provides the central sync server.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
	"github.com/fixline/bodyshop/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Operator dashboards connect from anywhere; the endpoint is
		// read-only event fan-out.
		return true
	},
}

// Event types broadcast on /sync/events.
const (
	EventSyncUploaded   = "sync.uploaded"
	EventSyncDownloaded = "sync.downloaded"
)

// EventEnvelope wraps all websocket messages.
type EventEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// wsClient is one connected dashboard.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *EventHub
}

// EventHub fans sync activity events out to connected operators. It
// implements sync.Broadcaster; broadcasts never block the sync path,
// slow clients are dropped.
type EventHub struct {
	clients    map[string]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

// NewEventHub creates and starts an EventHub.
func NewEventHub() *EventHub {
	hub := &EventHub{
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
	go hub.run()
	return hub
}

func (h *EventHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stall.
					delete(h.clients, id)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *EventHub) emit(eventType string, data map[string]interface{}) {
	envelope := EventEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// SyncUploaded implements sync.Broadcaster.
func (h *EventHub) SyncUploaded(identity models.NodeIdentity, processed, ignored int) {
	h.emit(EventSyncUploaded, map[string]interface{}{
		"storeId":   identity.StoreID,
		"storeType": string(identity.StoreType),
		"processed": processed,
		"ignored":   ignored,
	})
}

// SyncDownloaded implements sync.Broadcaster.
func (h *EventHub) SyncDownloaded(identity models.NodeIdentity, records int, cursor int64) {
	h.emit(EventSyncDownloaded, map[string]interface{}{
		"storeId":   identity.StoreID,
		"storeType": string(identity.StoreType),
		"records":   records,
		"cursor":    cursor,
	})
}

// ServeWS handles GET /sync/events.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			map[string]interface{}{"remote": r.RemoteAddr})
		return
	}

	client := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// notice disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
