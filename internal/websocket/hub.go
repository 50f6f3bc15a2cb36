package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nomadsam6/bls2/internal/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	sendBufferSize = 100
)

// Event is one message pushed to connected clients
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans events out to every connected WebSocket client. Slow clients are
// disconnected rather than allowed to block the broadcast path.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*connection
	upgrader    websocket.Upgrader
	logger      *logrus.Logger
	metrics     *monitoring.Metrics
}

// connection shutdown is signalled through done rather than by closing the
// events channel: the read loop may be sending into events while another
// goroutine tears the connection down.
type connection struct {
	id     string
	conn   *websocket.Conn
	events chan *Event
	done   chan struct{}
	once   sync.Once
}

// NewHub creates a WebSocket hub. metrics may be nil.
func NewHub(logger *logrus.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		connections: make(map[string]*connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from arbitrary origins in
			// local deployments.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Broadcast queues an event for every active connection. Connections whose
// buffers are full are dropped.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	event := &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	var stale []string
	for id, conn := range h.connections {
		select {
		case conn.events <- event:
		default:
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.WithField("connection_id", id).Warn("dropping slow websocket client")
		h.closeConnection(id)
	}

	if h.metrics != nil {
		h.metrics.ObserveBroadcast(eventType)
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HandleConnection upgrades the request and serves the connection until the
// client disconnects
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := &connection{
		id:     uuid.New().String(),
		conn:   ws,
		events: make(chan *Event, sendBufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[conn.id] = conn
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WebSocketOpened()
	}
	h.logger.WithField("connection_id", conn.id).Info("websocket client connected")

	go h.writeLoop(conn)
	h.readLoop(conn)
}

// readLoop consumes client frames. Clients may send {"type":"ping"} and get
// a pong event back; everything else is ignored.
func (h *Hub) readLoop(conn *connection) {
	defer h.closeConnection(conn.id)

	conn.conn.SetReadLimit(4096)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			continue
		}
		if incoming.Type == "ping" {
			select {
			case conn.events <- &Event{Type: "pong", Timestamp: time.Now().UTC()}:
			case <-conn.done:
				return
			default:
			}
		}
	}
}

// writeLoop pushes queued events and keepalive pings to the client
func (h *Hub) writeLoop(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-conn.events:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeConnection removes and closes a connection; safe to call twice
func (h *Hub) closeConnection(id string) {
	h.mu.Lock()
	conn, exists := h.connections[id]
	if exists {
		delete(h.connections, id)
	}
	h.mu.Unlock()

	if exists {
		conn.once.Do(func() { close(conn.done) })
		conn.conn.Close()
		if h.metrics != nil {
			h.metrics.WebSocketClosed()
		}
		h.logger.WithField("connection_id", id).Info("websocket client disconnected")
	}
}
