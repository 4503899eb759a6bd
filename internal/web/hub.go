// Package web broadcasts live per-frame metadata to browser viewers over
// websockets. Viewers are lossy consumers, same policy as the pipeline
// queues: a full hub queue drops updates, and a client too slow to take an
// update is disconnected rather than stalling the broadcast.
package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// Update is one frame's renderable state.
type Update struct {
	CamID   string           `json:"cam_id"`
	FrameID int              `json:"frame_id"`
	Boxes   []BoxMeta        `json:"boxes"`
	Acts    []packet.ActMeta `json:"acts,omitempty"`
}

// BoxMeta is a renderable detection.
type BoxMeta struct {
	Box   packet.Box `json:"box"`
	Label string     `json:"label"`
	ID    int        `json:"id,omitempty"`
}

// UpdateFromPacket projects a frame packet onto its renderable state.
func UpdateFromPacket(p *packet.FramePacket) Update {
	u := Update{CamID: p.CamID, FrameID: p.FrameID, Acts: p.Acts}
	for _, m := range p.Meta {
		b := BoxMeta{Box: m.Box, Label: m.Label}
		if m.Tracked {
			b.ID = m.ID
		}
		u.Boxes = append(u.Boxes, b)
	}
	return u
}

const clientSendBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans updates out to every connected viewer.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool

	updates chan []byte
}

// NewHub creates a hub; Run must be started for broadcasts to flow.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The viewer page may be served from another host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		updates: make(chan []byte, 64),
	}
}

// Broadcast queues an update for all viewers. Lossy on overload.
func (h *Hub) Broadcast(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		monitoring.Logf("[Web] drop unmarshalable update: %v", err)
		return
	}
	select {
	case h.updates <- data:
	default:
	}
}

// Run fans updates out until done closes.
func (h *Hub) Run(done <-chan struct{}) {
	for data := range channerics.OrDone[[]byte](done, h.updates) {
		h.mu.Lock()
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				// Slow viewer: disconnect it rather than buffer forever.
				delete(h.clients, c)
				close(c.send)
			}
		}
		h.mu.Unlock()
	}
}

// ServeWS upgrades one viewer connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[Web] upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	monitoring.Logf("[Web] viewer connected from %s", conn.RemoteAddr())

	go func() {
		defer conn.Close()
		for data := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.mu.Lock()
				if h.clients[c] {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
				return
			}
		}
	}()

	// Reader loop only to observe disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				if h.clients[c] {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}

// ViewerCount reports connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
