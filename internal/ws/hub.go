// Package ws implements the backend's WebSocket fan-out: topic-subscribed
// clients receive best-effort publishes of domain events, with a slow
// client disconnected rather than allowed to back up the publisher.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a single fan-out message. Type is one of the §4.8 event names
// ("task-claimed", "task-released", "task-completed", "review-requested",
// "review-completed", "notification-created"); Payload is event-specific.
type Event struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// outboundBuffer bounds how far a slow client may lag behind a publisher
// before being disconnected.
const outboundBuffer = 64

// Client is one subscriber connection's fan-out side: a topic set plus a
// buffered outbound channel drained by the connection's write pump.
type Client struct {
	id     int64
	outbox chan []byte
	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

func newClient(id int64) *Client {
	return &Client{
		id:     id,
		outbox: make(chan []byte, outboundBuffer),
		topics: make(map[string]bool),
	}
}

// Outbox is the channel a connection's write pump should drain.
func (c *Client) Outbox() <-chan []byte { return c.outbox }

func (c *Client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = true
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// enqueue attempts a non-blocking send, returning false if the client's
// outbound buffer is full (the caller should then disconnect the client,
// per the spec's slow-client policy) or already closed.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	select {
	case c.outbox <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// Hub keeps the topic -> subscribers index and publishes events to
// subscribed, live clients. The fan-out is process-local: no cross-node
// delivery guarantee, matching §4.8's documented scope.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]bool
	clients     map[int64]*Client
	nextID      int64
	logger      *slog.Logger

	// onDisconnect, if set, is invoked (outside the hub's lock) whenever a
	// client is dropped for a full outbound buffer, so a caller can close
	// the underlying socket.
	onDisconnect func(clientID int64)
}

// NewHub builds an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		clients:     make(map[int64]*Client),
		logger:      logger,
	}
}

// OnDisconnect registers a callback for slow-client eviction.
func (h *Hub) OnDisconnect(f func(clientID int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = f
}

// Register creates and tracks a new Client, returning it for the caller's
// connection goroutines to read from.
func (h *Hub) Register() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := newClient(h.nextID)
	h.clients[c.id] = c
	return c
}

// Unregister removes c from every topic it was subscribed to and drops it
// from the hub entirely. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	for topic, set := range h.subscribers {
		if set[c] {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subscribers, topic)
			}
		}
	}
	delete(h.clients, c.id)
	c.close()
}

// ValidTopic reports whether topic matches one of the four §4.8 shapes:
// "task:<id>", "challenge:<id>", "user:<id>", or the literal "global".
func ValidTopic(topic string) bool {
	if topic == "global" {
		return true
	}
	for _, prefix := range []string{"task:", "challenge:", "user:"} {
		if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
			return allDigits(topic[len(prefix):])
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Subscribe adds c to topic's subscriber set. Returns false if topic is not
// a recognised shape; the caller's protocol handler should respond with an
// error rather than a silent no-op.
func (h *Hub) Subscribe(c *Client, topic string) bool {
	if !ValidTopic(topic) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[*Client]bool)
	}
	h.subscribers[topic][c] = true
	c.subscribe(topic)
	return true
}

// Unsubscribe removes c from topic's subscriber set.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subscribers[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, topic)
		}
	}
	c.unsubscribe(topic)
}

// Publish sends ev to every client subscribed to ev.Topic. Publishing is
// best-effort: a client whose outbound buffer is full is disconnected
// rather than allowed to block the publisher or other subscribers.
func (h *Hub) Publish(ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	subs := h.subscribers[ev.Topic]
	targets := make([]*Client, 0, len(subs))
	for c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			h.dropSlowClient(c)
		}
	}
	return nil
}

func (h *Hub) dropSlowClient(c *Client) {
	h.mu.Lock()
	h.unregisterLocked(c)
	cb := h.onDisconnect
	h.mu.Unlock()

	h.logger.Warn("ws: disconnecting slow client", "client_id", c.id)
	if cb != nil {
		cb(c.id)
	}
}
