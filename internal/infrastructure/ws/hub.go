// Package ws streams listing events to browsers watching a listing.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/resale-hub/claim-engine/internal/domain/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket watching a listing.
type Client struct {
	ID        string
	ListingID uuid.UUID
	conn      *websocket.Conn
	send      chan []byte
}

// Hub keeps one room per listing and fans events out to its clients.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Client]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Serve upgrades the request and joins the listing's room. It returns once
// the pumps are running.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, listingID uuid.UUID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		ID:        uuid.New().String(),
		ListingID: listingID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
	welcome, _ := json.Marshal(map[string]string{
		"type":      "connected",
		"listingId": listingID.String(),
		"clientId":  c.ID,
	})
	c.send <- welcome
	h.register(c)
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Publish implements event.Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, e *event.Event) error {
	return h.Deliver(e)
}

// Deliver sends e to every client in its listing's room. Clients whose
// buffer is full are disconnected.
func (h *Hub) Deliver(e *event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[e.ListingID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn().Str("client_id", c.ID).Msg("disconnecting slow websocket client")
		h.unregister(c)
	}
	return nil
}

// Count returns the number of clients watching listingID.
func (h *Hub) Count(listingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[listingID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, id)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.ListingID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.ListingID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.ListingID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ListingID)
	}
	close(c.send)
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump only drains control frames; clients never send data.
func (h *Hub) readPump(c *Client) {
	defer h.unregister(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket closed")
			}
			return
		}
	}
}

var _ event.Publisher = (*Hub)(nil)
