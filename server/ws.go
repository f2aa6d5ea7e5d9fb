package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/warden/supervisor"
)

// WebSocket timeouts following Gorilla best practices
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The status server binds to a container-local port; same-origin checks
	// add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventMessage wraps a supervisor lifecycle event for the wire
type EventMessage struct {
	Type  string           `json:"type"`
	Event supervisor.Event `json:"event"`
}

// client is one connected WebSocket peer
type client struct {
	conn    *websocket.Conn
	sendMsg chan interface{}

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.sendMsg)
	})
}

// SupervisorEvent implements supervisor.EventSink: every lifecycle transition
// is streamed to connected clients as it happens.
func (s *Server) SupervisorEvent(event supervisor.Event) {
	sent := s.broadcast(EventMessage{Type: "supervisor_event", Event: event})
	s.logger.Debugw("Broadcasted supervisor event",
		"kind", event.Kind,
		"clients", sent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:    conn,
		sendMsg: make(chan interface{}, 64),
	}
	s.addClient(c)

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel onto the connection
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendMsg:
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

// readPump discards inbound messages; the stream is one-way. It exists to
// notice disconnects and answer pings.
func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
