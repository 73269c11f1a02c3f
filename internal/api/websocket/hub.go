package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
)

// Message is the wire envelope for dashboard frames.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	// TypeAssignment frames a single live assignment event.
	TypeAssignment = "assignment"
	// TypeSnapshot frames the replay buffer sent once on connect.
	TypeSnapshot = "snapshot"
)

// EventFeed supplies the replay buffer for newly connected clients.
// *cache.EventFeed satisfies it.
type EventFeed interface {
	Push(ctx context.Context, ev assignment.Event) error
	Recent(ctx context.Context, n int) ([]assignment.Event, error)
}

// Config holds connection tuning for dashboard sockets.
type Config struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the connection defaults. PingPeriod must stay
// below PongTimeout or healthy clients get dropped.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageSize:  4 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Hub fans assignment events out to connected dashboard clients. It is
// the Broadcaster the assignment service publishes committed outcomes to.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan assignment.Event

	feed     EventFeed
	logger   *slog.Logger
	config   Config
	upgrader websocket.Upgrader
}

// NewHub builds a hub. feed may be nil, in which case new clients start
// with an empty snapshot.
func NewHub(feed EventFeed, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan assignment.Event, 256),
		feed:       feed,
		logger:     logger,
		config:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Broadcast enqueues a committed assignment event for fan-out. It never
// blocks; when the hub backlog is full the event is dropped and the
// dashboards catch up from the snapshot on reconnect.
func (h *Hub) Broadcast(ctx context.Context, ev assignment.Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("dashboard event dropped, hub backlog full",
			"lead_id", ev.LeadID)
	}
}

// Run owns the client set. It exits when ctx is canceled, closing every
// connection on the way out.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.sendSnapshot(ctx, client)
			h.logger.Debug("dashboard client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case ev := <-h.events:
			h.fanOut(ctx, ev)

		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, ev assignment.Event) {
	if h.feed != nil {
		pushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := h.feed.Push(pushCtx, ev); err != nil {
			h.logger.Warn("event feed push failed", "error", err)
		}
		cancel()
	}

	frame, err := json.Marshal(Message{Type: TypeAssignment, Payload: ev})
	if err != nil {
		h.logger.Error("marshal assignment event", "error", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Slow consumer; drop the connection rather than the stream.
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, client *Client) {
	events := []assignment.Event{}
	if h.feed != nil {
		recentCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		recent, err := h.feed.Recent(recentCtx, 0)
		cancel()
		if err != nil {
			h.logger.Warn("snapshot read failed", "error", err)
		} else {
			events = recent
		}
	}

	frame, err := json.Marshal(Message{Type: TypeSnapshot, Payload: events})
	if err != nil {
		h.logger.Error("marshal snapshot", "error", err)
		return
	}

	select {
	case client.send <- frame:
	default:
		h.logger.Warn("snapshot dropped, client send buffer full")
	}
}

// ServeHTTP upgrades the request and registers the client with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
