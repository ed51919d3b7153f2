// Package ws streams signal bus events to dashboard clients over websocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
	"github.com/alanyoungcy/polytrade/internal/server/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

// relayed are the bus channels a client may follow. Every client starts on
// all of them.
var relayed = []string{
	domain.ChannelSuggestions,
	domain.ChannelTrades,
}

// Config carries the metadata shown in the status frame and the browser
// origins allowed to connect.
type Config struct {
	Mode      string
	Profiles  []string
	StartedAt time.Time

	// AllowedOrigins follows the HTTP CORS list. Same-host pages and
	// non-browser clients (no Origin header) are always accepted.
	AllowedOrigins []string
}

// control is a frame sent by the client, e.g.
// {"action":"unsubscribe","channels":["ch:trades"]}.
type control struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// Hub fans signal bus envelopes out to websocket clients. It keeps the
// latest envelope per channel so a new client sees the current suggestion
// batch and last trade event without waiting for the next publish.
type Hub struct {
	bus       domain.SignalBus
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	mode      string
	profiles  []string
	startedAt time.Time

	// mu guards clients, latest and every close of a client's send channel.
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[string][]byte
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

// NewHub builds a hub relaying bus to websocket clients. Call Run to start
// relaying.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	h := &Hub{
		bus:       bus,
		logger:    logger.With(slog.String("component", "ws")),
		mode:      mode,
		profiles:  cfg.Profiles,
		startedAt: startedAt,
		clients:   make(map[*client]struct{}),
		latest:    make(map[string][]byte),
	}
	allowed := cfg.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originOK(r, allowed)
		},
	}
	return h
}

func originOK(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || middleware.OriginAllowed(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// Run subscribes to the relayed channels and forwards envelopes until ctx is
// cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range relayed {
		msgs, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.Error("ws: subscribe failed", slog.String("channel", ch), slog.String("error", err.Error()))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.forward(ctx, ch, msgs)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	return ctx.Err()
}

func (h *Hub) forward(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			h.broadcast(channel, data)
		}
	}
}

func (h *Hub) broadcast(channel string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[channel] = data
	for c := range h.clients {
		if c.following(channel) && !c.offer(data) {
			metrics.WSFramesDropped.WithLabelValues(channel).Inc()
			h.logger.Warn("ws: dropping frame for slow client", slog.String("channel", channel))
		}
	}
}

// HandleWS upgrades the request and starts the client's pumps. The client
// receives a status frame, then the latest envelope on each channel.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(relayed)),
	}
	for _, ch := range relayed {
		c.subs[ch] = true
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	c.offer(h.statusFrame(total))
	for _, ch := range relayed {
		if data, ok := h.latest[ch]; ok {
			c.offer(data)
		}
	}
	h.mu.Unlock()

	metrics.WSClients.Inc()
	h.logger.Info("ws: client connected", slog.Int("clients", total))

	go c.writePump()
	go c.readPump()
}

// disconnect removes c once; later calls are no-ops.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		h.dropLocked(c)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws: client disconnected", slog.Int("clients", total))
	}
}

func (h *Hub) dropLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
	metrics.WSClients.Dec()
}

// reply queues a frame for c unless it has already been disconnected.
func (h *Hub) reply(c *client, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		c.offer(frame)
	}
}

func (h *Hub) statusFrame(clients int) []byte {
	uptime := int64(time.Since(h.startedAt).Seconds())
	return frame("status", map[string]any{
		"mode":           h.mode,
		"profiles":       h.profiles,
		"channels":       relayed,
		"uptime_seconds": max(uptime, 0),
		"clients":        clients,
	})
}

func frame(event string, data any) []byte {
	b, _ := json.Marshal(map[string]any{
		"event": event,
		"at":    time.Now().UTC(),
		"data":  data,
	})
	return b
}

// offer queues data without blocking. The caller holds hub.mu.
func (c *client) offer(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) following(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *client) channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for _, ch := range relayed {
		if c.subs[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// apply handles one control frame. It returns the reply and, for newly
// followed channels, their latest envelopes.
func (c *client) apply(msg control) (reply []byte, replay [][]byte) {
	for _, ch := range msg.Channels {
		if !slices.Contains(relayed, ch) {
			return frame("error", map[string]any{
				"message":  fmt.Sprintf("unknown channel %q", ch),
				"channels": relayed,
			}), nil
		}
	}

	var added []string
	c.mu.Lock()
	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			if !c.subs[ch] {
				c.subs[ch] = true
				added = append(added, ch)
			}
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	default:
		c.mu.Unlock()
		return frame("error", map[string]any{"message": fmt.Sprintf("unknown action %q", msg.Action)}), nil
	}
	c.mu.Unlock()

	c.hub.mu.RLock()
	for _, ch := range added {
		if data, ok := c.hub.latest[ch]; ok {
			replay = append(replay, data)
		}
	}
	c.hub.mu.RUnlock()

	return frame("subscribed", map[string]any{"channels": c.channels()}), replay
}

func (c *client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var msg control
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.reply(c, frame("error", map[string]any{"message": "control frames must be JSON"}))
			continue
		}
		reply, replay := c.apply(msg)
		c.hub.reply(c, reply)
		for _, data := range replay {
			c.hub.reply(c, data)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
