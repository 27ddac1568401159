// internal/server/hub.go
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer. The flow stream carries nothing
	// client to server beyond control frames.
	maxMessageSize = 512
	// Per-client send buffer. A client that falls this far behind is dropped.
	sendBufferSize = 256
	// Broadcast staging buffer between the engine's sink calls and the hub
	// loop, so sink notifications never block a running turn.
	broadcastBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API subtree is served with permissive CORS; the handshake
		// matches it.
		return true
	},
}

// Flow event types on the WebSocket stream.
const (
	EventFlow  = "flow"
	EventReply = "reply"
)

// FlowEvent is one frame on the flow stream: a timeline entry transition or a
// final assistant reply.
type FlowEvent struct {
	Type  string             `json:"type"`
	Entry *schemas.FlowEntry `json:"entry,omitempty"`
	Reply string             `json:"reply,omitempty"`
}

// flowClient is a middleman between one websocket connection and the hub.
type flowClient struct {
	id   string
	hub  *FlowHub
	conn *websocket.Conn
	// Buffered channel of outbound frames. The writePump reads from this.
	send chan []byte
}

// FlowHub fans flow-timeline entries and final replies out to every connected
// websocket client. It implements schemas.FlowSink, so the orchestration loop
// feeds it directly.
type FlowHub struct {
	logger     *zap.Logger
	broadcast  chan []byte
	register   chan *flowClient
	unregister chan *flowClient
	done       chan struct{}

	mu      sync.Mutex
	clients map[*flowClient]bool
}

// NewFlowHub creates the hub. Run must be started for frames to move.
func NewFlowHub(logger *zap.Logger) *FlowHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowHub{
		logger:     logger.Named("server.flow_hub"),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *flowClient),
		unregister: make(chan *flowClient),
		done:       make(chan struct{}),
		clients:    make(map[*flowClient]bool),
	}
}

// FlowUpdated implements schemas.FlowSink.
func (h *FlowHub) FlowUpdated(entry schemas.FlowEntry) {
	h.enqueue(FlowEvent{Type: EventFlow, Entry: &entry})
}

// ReplyReady implements schemas.FlowSink.
func (h *FlowHub) ReplyReady(reply string) {
	h.enqueue(FlowEvent{Type: EventReply, Reply: reply})
}

// enqueue stages one frame for broadcast without ever blocking the caller;
// the engine's turn must not stall on a slow stream.
func (h *FlowHub) enqueue(event FlowEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal flow event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Flow broadcast buffer full, dropping event", zap.String("type", event.Type))
	}
}

// Run owns the client set until ctx is canceled, then closes every client.
func (h *FlowHub) Run(ctx context.Context) {
	h.logger.Info("Flow hub started.")
	defer h.logger.Info("Flow hub stopped.")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Flow stream client connected.", zap.String("client_id", client.id))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("Flow stream client disconnected.", zap.String("client_id", client.id))
			}
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// The client stopped draining its buffer; let it go
					// rather than stall every other stream.
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("Flow stream client too slow, dropping it.", zap.String("client_id", client.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *FlowHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serveWS upgrades the request and hands the connection to the pumps.
func (h *FlowHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Error("Failed to upgrade flow stream connection", zap.Error(err))
		return
	}

	client := &flowClient{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed and closure
// is noticed. Data frames from the client are ignored.
func (c *flowClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Flow stream client read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps frames from the hub to the connection and keeps it alive
// with pings. All writes go through here; the connection requires a single
// writer.
func (c *flowClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
