// Package feed pushes room snapshots to websocket subscribers after every
// committed change.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
)

// Publisher receives the full state of a room once a mutation has committed.
type Publisher interface {
	Publish(roomID uuid.UUID, snapshot any)
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) Publish(uuid.UUID, any) {}

type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      16,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type message struct {
	roomID uuid.UUID
	data   []byte
}

// Hub keeps the websocket subscribers of every room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*subscriber]bool

	upgrader  websocket.Upgrader
	config    Config
	broadcast chan message
}

type subscriber struct {
	id     string
	roomID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

func NewHub(config Config) *Hub {
	config.SendBuffer = max(config.SendBuffer, 1)
	return &Hub{
		rooms: make(map[uuid.UUID]map[*subscriber]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:    config,
		broadcast: make(chan message, 256),
	}
}

// Run delivers published snapshots until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Publish queues the snapshot for every subscriber of the room. Snapshots are
// dropped when the queue is full; the next one carries the full state anyway.
func (h *Hub) Publish(roomID uuid.UUID, snapshot any) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error("failed to marshal room snapshot", "room_id", roomID, "err", err)
		return
	}
	select {
	case h.broadcast <- message{roomID: roomID, data: data}:
	default:
		log.Warn("feed queue full, dropping snapshot", "room_id", roomID)
	}
}

// Subscribe upgrades the request and streams snapshots of the room, starting
// with initial when it is not nil.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, roomID uuid.UUID, initial any) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return eris.Wrap(err, "failed to upgrade connection")
	}

	s := &subscriber{
		id:     uuid.NewString(),
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, h.config.SendBuffer),
		hub:    h,
	}

	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			conn.Close()
			return eris.Wrap(err, "failed to marshal initial snapshot")
		}
		s.send <- data
	}

	h.register(s)
	go s.writePump()
	go s.readPump()

	log.Debug("subscriber connected", "room_id", roomID, "subscriber", s.id)
	return nil
}

func (h *Hub) Subscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[s.roomID] == nil {
		h.rooms[s.roomID] = make(map[*subscriber]bool)
	}
	h.rooms[s.roomID][s] = true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[s.roomID]
	if !ok || !subs[s] {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.rooms, s.roomID)
	}
	log.Debug("subscriber disconnected", "room_id", s.roomID, "subscriber", s.id)
}

// deliver sends under the read lock so unregister cannot close a channel
// mid-send; slow subscribers are dropped once the lock is released.
func (h *Hub) deliver(msg message) {
	var slow []*subscriber
	h.mu.RLock()
	for s := range h.rooms[msg.roomID] {
		select {
		case s.send <- msg.data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Warn("subscriber too slow, closing", "room_id", msg.roomID, "subscriber", s.id)
		h.unregister(s)
		if s.conn != nil {
			s.conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*subscriber
	for _, subs := range h.rooms {
		for s := range subs {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		h.unregister(s)
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(s.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.hub.unregister(s)
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("write to subscriber failed", "subscriber", s.id, "err", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients never send commands.
func (s *subscriber) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.hub.config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.hub.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
