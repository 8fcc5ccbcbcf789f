package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ionode/internal/infrastructure/logging"
	"github.com/nerrad567/ionode/internal/status"
)

// Frame kinds on /api/v1/ws.
const (
	FrameSnapshot = "snapshot" // first frame after connect
	FrameEvent    = "event"    // one tracker event
	FrameFilter   = "filter"   // client request replacing its event filter
	FrameAck      = "ack"      // reply to a filter request
	FrameError    = "error"    // reply to a malformed request
)

const (
	streamBuffer       = 32
	streamReadLimit    = 1024
	streamPingInterval = 30 * time.Second
	streamPongWait     = 60 * time.Second
	streamWriteWait    = 10 * time.Second
)

// Frame is one message on the event stream, in either direction.
type Frame struct {
	Kind  string    `json:"kind"`
	ID    string    `json:"id,omitempty"`
	Event string    `json:"event,omitempty"`
	Time  time.Time `json:"time,omitzero"`
	Data  any       `json:"data,omitempty"`

	// Events is the filter carried by FrameFilter and echoed by FrameAck.
	// Each entry is an event type or its group prefix ("button", "link").
	// Empty means every event.
	Events []string `json:"events,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	// Read-only status feed on a device LAN; no origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans tracker events out to stream clients. A client that cannot keep
// up loses events rather than stalling the tracker.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}

	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run disconnects every client once ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Publish delivers ev to every client whose filter accepts it.
func (h *Hub) Publish(ev status.Event) {
	data, err := json.Marshal(Frame{Kind: FrameEvent, Event: ev.Type, Time: ev.Time, Data: ev.Data})
	if err != nil {
		h.logger.Error("encoding stream frame", "event", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(ev.Type) && !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "remote", c.conn.RemoteAddr().String(), "clients", n)
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

// streamClient is one connected websocket.
type streamClient struct {
	conn *websocket.Conn
	out  chan []byte

	done      chan struct{}
	closeOnce sync.Once

	filterMu sync.RWMutex
	filter   []string
}

func newStreamClient(conn *websocket.Conn, filter []string) *streamClient {
	return &streamClient{
		conn:   conn,
		out:    make(chan []byte, streamBuffer),
		done:   make(chan struct{}),
		filter: filter,
	}
}

// wants reports whether eventType passes the client's filter.
func (c *streamClient) wants(eventType string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	if len(c.filter) == 0 {
		return true
	}
	for _, f := range c.filter {
		if f == eventType || strings.HasPrefix(eventType, f+".") {
			return true
		}
	}
	return false
}

func (c *streamClient) setFilter(filter []string) {
	c.filterMu.Lock()
	c.filter = filter
	c.filterMu.Unlock()
}

// enqueue queues data without blocking. It returns false if the client's
// buffer is full.
func (c *streamClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *streamClient) reply(f Frame) {
	f.Time = time.Now().UTC()
	if data, err := json.Marshal(f); err == nil {
		c.enqueue(data)
	}
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// handleWebSocket upgrades the request and streams tracker events.
// ?events=button,led sets the initial filter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	c := newStreamClient(conn, splitList(r.URL.Query().Get("events")))
	c.reply(Frame{Kind: FrameSnapshot, Data: s.tracker.Snapshot()})
	s.hub.add(c)

	go s.writeStream(c)
	go s.readStream(c)
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}

// readStream handles filter requests until the connection drops.
func (s *Server) readStream(c *streamClient) {
	defer s.hub.remove(c)

	c.conn.SetReadLimit(streamReadLimit)
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var req Frame
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.reply(Frame{Kind: FrameError, Data: "malformed frame"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("stream read ended", "error", err)
			}
			return
		}

		if req.Kind != FrameFilter {
			c.reply(Frame{Kind: FrameError, ID: req.ID, Data: "unsupported frame kind " + req.Kind})
			continue
		}
		c.setFilter(req.Events)
		c.reply(Frame{Kind: FrameAck, ID: req.ID, Events: req.Events})
	}
}

// writeStream drains the client's queue and keeps the connection alive.
func (s *Server) writeStream(c *streamClient) {
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	write := func(kind int, data []byte) bool {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return c.conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if !write(websocket.TextMessage, data) {
				c.close()
				return
			}
		case <-ping.C:
			if !write(websocket.PingMessage, nil) {
				c.close()
				return
			}
		}
	}
}
