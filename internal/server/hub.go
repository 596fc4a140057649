package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Event is one pipeline notification pushed to websocket subscribers.
type Event struct {
	Type      string    `json:"type"` // memory_ingested, memory_deleted, question_answered
	UserID    string    `json:"user_id,omitempty"`
	MemoryID  string    `json:"memory_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriber is one connected client; mocked in tests.
type subscriber interface {
	sendChannel() chan []byte
	close()
}

// wsClient is a live websocket subscriber.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Hub fans pipeline events out to websocket subscribers. Slow subscribers
// are disconnected rather than allowed to block the broadcast loop.
type Hub struct {
	clients    map[subscriber]bool
	broadcast  chan Event
	register   chan subscriber
	unregister chan subscriber
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub creates a hub; call Run on its own goroutine.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("server: marshal event: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.sendChannel() <- data:
				default:
					// Send buffer full; drop the subscriber.
					close(client.sendChannel())
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and disconnects every subscriber.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Publish queues an event for broadcast, dropping it when the queue is full.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Println("server: event queue full, dropping event")
	}
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client frames so disconnects are noticed.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
