// Package ws streams bus events to WebSocket clients with per-topic replay.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Message wraps a WebSocket payload with sequencing for replay.
type Message struct {
	Topic string          `json:"topic"`
	Seq   uint64          `json:"seq"`
	Data  json.RawMessage `json:"data"`
}

// ringBuffer holds the last N messages for a topic.
type ringBuffer struct {
	buf   []Message
	size  int
	start int
	count int
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]Message, size), size: size}
}

func (r *ringBuffer) add(msg Message) {
	idx := (r.start + r.count) % r.size
	if r.count == r.size {
		r.start = (r.start + 1) % r.size
		r.count--
	}
	r.buf[idx] = msg
	r.count++
}

// since returns messages with Seq > seq, oldest first.
func (r *ringBuffer) since(seq uint64) []Message {
	var out []Message
	for i := 0; i < r.count; i++ {
		msg := r.buf[(r.start+i)%r.size]
		if msg.Seq > seq {
			out = append(out, msg)
		}
	}
	return out
}

// Client represents a single WebSocket connection.
type Client struct {
	conn *websocket.Conn
	send chan Message
	hub  *Hub

	mu     sync.RWMutex
	topics map[string]struct{}
}

func (c *Client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

// Hub fans bus events out to subscribed clients. Broadcast never blocks: when
// the hub falls behind, messages are dropped and counted.
type Hub struct {
	logger     *zap.Logger
	clientBuf  int
	replaySize int

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}

	mu      sync.Mutex
	clients map[*Client]struct{}
	buffers map[string]*ringBuffer
	nextSeq uint64
	dropped atomic.Int64

	upgrader websocket.Upgrader
}

// NewHub creates a hub. clientBuf bounds each client's send queue; replaySize
// is the per-topic history sent to new subscribers.
func NewHub(logger *zap.Logger, clientBuf, replaySize int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clientBuf <= 0 {
		clientBuf = 256
	}
	if replaySize <= 0 {
		replaySize = 100
	}
	return &Hub{
		logger:     logger,
		clientBuf:  clientBuf,
		replaySize: replaySize,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 1024),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		buffers:    make(map[string]*ringBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Attach forwards every bus event to the hub under its topic.
func (h *Hub) Attach(bus events.EventBus) {
	bus.SubscribeAll(func(e events.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			h.logger.Warn("Failed to encode event for websocket", zap.String("type", e.Type), zap.Error(err))
			return
		}
		h.Broadcast(e.Topic, data)
	})
}

// Run handles registration and fan-out until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.conn.Close()
			}
			h.mu.Unlock()
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			buf, ok := h.buffers[msg.Topic]
			if !ok {
				buf = newRingBuffer(h.replaySize)
				h.buffers[msg.Topic] = buf
			}
			buf.add(msg)
			for c := range h.clients {
				if !c.subscribed(msg.Topic) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					h.dropped.Add(1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast publishes data to topic subscribers.
func (h *Hub) Broadcast(topic string, data []byte) {
	h.mu.Lock()
	h.nextSeq++
	msg := Message{Topic: topic, Seq: h.nextSeq, Data: data}
	h.mu.Unlock()
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// Replay returns buffered messages for topic after seq.
func (h *Hub) Replay(topic string, seq uint64) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok := h.buffers[topic]; ok {
		return buf.since(seq)
	}
	return nil
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts messages not delivered because a queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeWS upgrades the request. The optional topics query parameter is a comma
// separated list; without it the client receives every topic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Client{
		conn:   conn,
		send:   make(chan Message, h.clientBuf),
		hub:    h,
		topics: make(map[string]struct{}),
	}
	topics := []string{events.TopicTrade, events.TopicOrder, events.TopicBot, events.TopicLog}
	if q := r.URL.Query().Get("topics"); q != "" {
		topics = strings.Split(q, ",")
	}
	for _, t := range topics {
		c.topics[strings.TrimSpace(t)] = struct{}{}
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// subscription is what clients send: {"subscribe":["trade"],"since":12}
type subscription struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
	Since       uint64   `json:"since"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscription
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		c.mu.Lock()
		for _, t := range req.Subscribe {
			c.topics[t] = struct{}{}
		}
		for _, t := range req.Unsubscribe {
			delete(c.topics, t)
		}
		c.mu.Unlock()
		for _, t := range req.Subscribe {
			for _, m := range c.hub.Replay(t, req.Since) {
				select {
				case c.send <- m:
				default:
					c.hub.dropped.Add(1)
				}
			}
		}
	}
}

func (c *Client) writePump() {
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
			if err := c.conn.WriteJSON(msg); err != nil {
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
