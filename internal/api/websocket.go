package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-mdm/internal/events"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/logging"
)

// Event stream frame types. Clients send subscribe, unsubscribe and ping;
// the server answers with response, pong or error and pushes event frames.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll matches every event type.
	WSChannelAll = "*"

	wsSendBufferSize = 256
)

// WSMessage is one frame on the event stream.
//
// Channels are event types such as "command.responded". Devices narrows a
// subscription to particular UDIDs; without any, events for every device
// match.
type WSMessage struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	Channels  []string      `json:"channels,omitempty"`
	Devices   []string      `json:"devices,omitempty"`
	EventType string        `json:"event_type,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans device and command events out to stream clients. It implements
// events.Sink.
//
// A client's send channel is only written or closed while holding mu, so
// publishing never races a disconnect.
type Hub struct {
	logger   *logging.Logger
	maxRead  int64
	ping     time.Duration
	idle     time.Duration
	writeDue time.Duration

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one stream connection and its subscription.
type WSClient struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
	devices  map[string]struct{}
}

// NewHub creates a hub. Zero timings fall back to the configuration
// defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	defaults := config.Default().WebSocket
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return &Hub{
		logger:   logger,
		maxRead:  int64(cfg.MaxMessageSize),
		ping:     ping,
		idle:     ping + pong,
		writeDue: pong,
		clients:  make(map[*WSClient]struct{}),
	}
}

func newWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		devices:  make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send channel. Repeated calls
// are harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements events.Sink. The frame is encoded once, and only if
// some client wants it. A client whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, e events.Event) {
	var frame []byte

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(e) {
			continue
		}
		if frame == nil {
			data, err := json.Marshal(WSMessage{Type: WSTypeEvent, EventType: string(e.Type), Event: &e})
			if err != nil {
				h.logger.Error("failed to encode stream event", "event", e.Type, "error", err)
				return
			}
			frame = data
		}
		if !c.enqueue(frame) {
			h.logger.Warn("slow websocket client missed event", "event", e.Type, "udid", e.DeviceUDID)
		}
	}
}

// reply queues a control response for c if it is still connected.
func (h *Hub) reply(c *WSClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		c.enqueue(data)
	}
}

// handleWebSocket upgrades GET /api/v1/ws and serves the event stream on
// it until either side hangs up.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.hub.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := newWSClient(conn)
	h.Register(c)
	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop answers control frames. Any inbound frame or pong keeps the
// connection alive for another ping interval plus pong timeout.
func (h *Hub) readLoop(c *WSClient) {
	defer func() {
		h.Unregister(c)
		c.conn.Close()
	}()

	keepAlive := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.idle))
	}
	c.conn.SetReadLimit(h.maxRead)
	c.conn.SetPongHandler(keepAlive)
	keepAlive("") //nolint:errcheck // a failed deadline surfaces on the next read

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		keepAlive("") //nolint:errcheck // a failed deadline surfaces on the next read
		h.reply(c, c.handle(data))
	}
}

// writeLoop drains the send channel and pings on an interval. A closed
// send channel means the hub dropped the client.
func (h *Hub) writeLoop(c *WSClient) {
	ticker := time.NewTicker(h.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case frame, open := <-c.send:
			if !open {
				h.write(c, websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			err = h.write(c, websocket.TextMessage, frame)
		case <-ticker.C:
			err = h.write(c, websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (h *Hub) write(c *WSClient, kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeDue)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

// handle applies one inbound control frame and returns the reply.
func (c *WSClient) handle(data []byte) WSMessage {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WSMessage{Type: WSTypeError, Error: "invalid JSON message"}
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.update(msg.Channels, msg.Devices, msg.Type == WSTypeSubscribe)
		return WSMessage{Type: WSTypeResponse, ID: msg.ID, Channels: msg.Channels, Devices: msg.Devices}
	case WSTypePing:
		return WSMessage{Type: WSTypePong, ID: msg.ID}
	default:
		return WSMessage{Type: WSTypeError, ID: msg.ID, Error: "unknown message type: " + msg.Type}
	}
}

func (c *WSClient) update(channels, devices []string, add bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	toggle(c.channels, channels, add)
	toggle(c.devices, devices, add)
}

func toggle(set map[string]struct{}, keys []string, add bool) {
	for _, k := range keys {
		if add {
			set[k] = struct{}{}
		} else {
			delete(set, k)
		}
	}
}

// wants reports whether e matches the client's subscription.
func (c *WSClient) wants(e events.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, all := c.channels[WSChannelAll]
	_, typed := c.channels[string(e.Type)]
	if !all && !typed {
		return false
	}
	if len(c.devices) == 0 {
		return true
	}
	_, ok := c.devices[e.DeviceUDID]
	return ok
}

// enqueue must be called with the hub lock held.
func (c *WSClient) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}
