package hub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

var ErrClientGone = errors.New("client is closed or its send buffer is full")

// Client is one websocket connection of an authenticated principal.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, session *domain.Session) *Client {
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, hub.config.SendBufferSize),
		Session: session,
	}
}

// UserID returns the principal behind the connection.
func (c *Client) UserID() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.UserID
}

// ReadPump reads frames until the connection fails, passing each to handler.
// onClose runs after the client has been unregistered.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client, []string)) {
	var rooms []string
	defer func() {
		rooms = c.Hub.Unregister(c)
		c.Conn.Close()
		if onClose != nil {
			onClose(c, rooms)
		}
	}()

	cfg := c.Hub.config
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			return
		}

		if c.Session != nil {
			c.Session.UpdateActivity()
		}
		handler(c, message)
	}
}

// WritePump drains Send onto the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	cfg := c.Hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a frame for this client only.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.Hub.deliver(c, data) {
		return ErrClientGone
	}
	return nil
}
