package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homesim-core/internal/home"
	"github.com/nerrad567/homesim-core/internal/infrastructure/config"
	"github.com/nerrad567/homesim-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// Event channels a client can subscribe to. New clients start subscribed
// to all of them.
const (
	ChannelActivity      = "home.activity"
	ChannelAlert         = "home.alert"
	ChannelTick          = "home.tick"
	ChannelSessionClosed = "session.closed"
)

// AllChannels lists the subscribable channels. session.closed is always
// delivered and cannot be unsubscribed.
func AllChannels() []string {
	return []string{ChannelActivity, ChannelAlert, ChannelTick}
}

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks WebSocket clients per session and fans session events out to
// them. It implements session.Sink.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]map[*WSClient]struct{}
	count    int
}

// WSClient is one connection. It only ever receives events of sessionID.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	sessionID     string
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers reach /ws only with a ticket minted by an authenticated
	// request, and CORS already governs that request.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]map[*WSClient]struct{}),
	}
}

func newWSClient(hub *Hub, conn *websocket.Conn, sessionID string) *WSClient {
	subs := make(map[string]struct{}, len(AllChannels()))
	for _, ch := range AllChannels() {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		sessionID:     sessionID,
		subscriptions: subs,
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds client under its session.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	set, ok := h.sessions[client.sessionID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.sessions[client.sessionID] = set
	}
	set[client] = struct{}{}
	h.count++
	total := h.count
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "session_id", client.sessionID, "clients", total)
}

// Unregister removes client and closes its send channel. Only the call that
// actually removes the client closes the channel, so racing Unregister and
// shutdown calls never double-close.
func (h *Hub) Unregister(client *WSClient) {
	if !h.remove(client) {
		return
	}
	close(client.send)
	h.logger.Debug("websocket client disconnected", "session_id", client.sessionID, "clients", h.ClientCount())
}

func (h *Hub) remove(client *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.sessions[client.sessionID]
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.sessions, client.sessionID)
	}
	h.count--
	return true
}

// HandleEvents maps each home event to its channel and publishes it to the
// session's clients.
func (h *Hub) HandleEvents(_ context.Context, sessionID string, events []home.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case home.EventActivity:
			h.Publish(sessionID, ChannelActivity, ev.Activity)
		case home.EventAlert:
			h.Publish(sessionID, ChannelAlert, ev.Alert)
		case home.EventTick:
			h.Publish(sessionID, ChannelTick, ev.Telemetry)
		}
	}
}

// Publish sends payload on channel to the clients of sessionID that are
// subscribed to it. The hub lock is released before client locks are taken.
func (h *Hub) Publish(sessionID, channel string, payload any) {
	clients := h.sessionClients(sessionID)
	if len(clients) == 0 {
		return
	}

	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event", "error", err, "channel", channel)
		return
	}
	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// CloseSession sends session.closed to the session's clients and
// disconnects them. Register it with session.Manager.OnRemove.
func (h *Hub) CloseSession(_ context.Context, sessionID string) {
	clients := h.sessionClients(sessionID)
	if len(clients) == 0 {
		return
	}

	if data, err := eventMessage(ChannelSessionClosed, map[string]string{"session_id": sessionID}); err == nil {
		for _, client := range clients {
			client.trySend(data)
		}
	}
	for _, client := range clients {
		h.Unregister(client)
	}
	h.logger.Info("websocket clients closed for ended session", "session_id", sessionID, "count", len(clients))
}

// ClientCount returns the number of connected clients across all sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) sessionClients(sessionID string) []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.sessions[sessionID]
	clients := make([]*WSClient, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	return clients
}

func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// closeAll drops every client, closing send channels so write pumps exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]map[*WSClient]struct{})
	h.count = 0
	h.mu.Unlock()

	for _, set := range sessions {
		for client := range set {
			close(client.send)
			if client.conn != nil {
				client.conn.Close()
			}
		}
	}
}

// handleWebSocket authenticates with a single-use ticket from
// POST /auth/ws-ticket and upgrades. The connection is bound to the
// ticket's session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket, time.Now())
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}
	if _, err := s.sessions.Get(entry.sessionID); err != nil {
		writeUnauthorized(w, "session expired")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, entry.sessionID)
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump owns the read side of conn. Pongs and any inbound frame extend
// the read deadline; when reads fail the client is unregistered.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	pingInterval, pongWait := wsTimings(cfg)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
	extend() //nolint:errcheck // a broken conn fails the first read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			level := slog.LevelDebug
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				level = slog.LevelWarn
			}
			c.hub.logger.ForSession(c.sessionID).Log(context.Background(), level, "websocket read ended", "error", err)
			return
		}
		extend() //nolint:errcheck // next read reports any failure
		c.handleMessage(data)
	}
}

// writePump owns the write side of conn: queued frames from send, plus a
// ping every interval. It exits when send is closed or a write fails.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, writeWait := wsTimings(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports failure
		return c.conn.WriteMessage(kind, data)
	}

	for {
		var err error
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			err = write(websocket.TextMessage, data)
		case <-ticker.C:
			err = write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// handleMessage dispatches one client frame.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions adds or removes the channels named in msg. Subscribing
// to an unknown channel rejects the whole request; unsubscribing from one is
// a no-op.
func (c *WSClient) updateSubscriptions(msg WSMessage, subscribe bool) {
	var req WSSubscribePayload
	raw, err := json.Marshal(msg.Payload)
	if err == nil {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	if subscribe {
		for _, ch := range req.Channels {
			if !slices.Contains(AllChannels(), ch) {
				c.sendError(msg.ID, "unknown channel: "+ch)
				return
			}
		}
	}

	c.mu.Lock()
	for _, ch := range req.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.hub.logger.ForSession(c.sessionID).Debug("websocket "+key, "channels", req.Channels)
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: req.Channels})
}

// trySend queues data without blocking. Frames for a full buffer are
// dropped, and a send racing Unregister's close is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

// isSubscribed reports whether channel events reach this client.
// session.closed always does.
func (c *WSClient) isSubscribed(channel string) bool {
	if channel == ChannelSessionClosed {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}

// wsTimings returns the ping interval and pong wait, falling back to
// 30s and 10s when unset.
func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping, pong = 30*time.Second, 10*time.Second
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	return ping, pong
}
