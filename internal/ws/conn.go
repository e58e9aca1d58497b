package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// inbound is the client-to-server subscription control message, per §4.8:
// {"action": "subscribe"|"unsubscribe", "topic": "..."}.
type inbound struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// ack is the server's response to a subscribe/unsubscribe request.
type ack struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Conn binds one upgraded *websocket.Conn to a Hub Client and runs its
// read and write pumps. Serve blocks until the socket closes.
type Conn struct {
	hub    *Hub
	client *Client
	socket *websocket.Conn
	logger *slog.Logger
}

// NewConn registers a fresh Client with hub and wraps socket.
func NewConn(hub *Hub, socket *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{hub: hub, client: hub.Register(), socket: socket, logger: logger}
}

// Serve runs the read and write pumps until either side closes the
// connection, then unregisters the client from the hub. Callers should run
// this in its own goroutine per accepted connection.
func (c *Conn) Serve() {
	defer c.hub.Unregister(c.client)
	defer c.socket.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()
	<-done
}

// readPump decodes subscribe/unsubscribe control messages. Any other read
// error (including a client-initiated close) ends the connection.
func (c *Conn) readPump() {
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendAck(ack{Error: "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Conn) handle(msg inbound) {
	switch msg.Action {
	case "subscribe":
		ok := c.hub.Subscribe(c.client, msg.Topic)
		a := ack{Action: "subscribe", Topic: msg.Topic, OK: ok}
		if !ok {
			a.Error = "unknown topic"
		}
		c.sendAck(a)
	case "unsubscribe":
		c.hub.Unsubscribe(c.client, msg.Topic)
		c.sendAck(ack{Action: "unsubscribe", Topic: msg.Topic, OK: true})
	default:
		c.sendAck(ack{Error: "unknown action"})
	}
}

func (c *Conn) sendAck(a ack) {
	msg, err := json.Marshal(a)
	if err != nil {
		return
	}
	c.client.enqueue(msg)
}

// writePump drains the client's outbox to the socket and keeps the
// connection alive with periodic pings. Returns when the outbox is closed
// (client unregistered, e.g. for a full buffer) or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.client.Outbox():
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
