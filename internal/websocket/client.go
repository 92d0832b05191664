package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client bridges a WebSocket connection with the hub. It also owns every
// stream opened on behalf of this connection: when the connection goes away,
// closeSubscriptions releases them all, so no subscription outlives its
// socket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	user *models.CurrentUser

	subMux     sync.Mutex
	chatList   *realtime.ChatStream
	msgStreams map[string]*realtime.MessageStream
	typStreams map[string]*realtime.TypingStream
}

// NewClient constructs a Client for the given hub connection.
func NewClient(hub *Hub, conn *websocket.Conn, user *models.CurrentUser) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		user:       user,
		msgStreams: make(map[string]*realtime.MessageStream),
		typStreams: make(map[string]*realtime.TypingStream),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("websocket read error", "userId", c.user.ID, "error", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
			c.hub.processMessage <- HubMessage{client: c, rawJSON: message}
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
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err = w.Write(message); err != nil {
				c.hub.log.Warnw("websocket write error", "userId", c.user.ID, "error", err)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage places a WebSocketMessage onto the outbound queue for this client.
func (c *Client) SendMessage(msgType string, payload interface{}) {
	wsMsg := WebSocketMessage{
		Type:    msgType,
		Payload: payload,
	}
	jsonMsg, err := json.Marshal(wsMsg)
	if err != nil {
		c.hub.log.Errorw("failed to marshal websocket message", "type", msgType, "error", err)
		return
	}

	select {
	case c.send <- jsonMsg:
	default:
		c.hub.log.Warnw("send channel full, dropping message", "userId", c.user.ID, "type", msgType)
	}
}

// setChatListStream installs the chat-list stream, closing any previous one.
func (c *Client) setChatListStream(stream *realtime.ChatStream) {
	c.subMux.Lock()
	prev := c.chatList
	c.chatList = stream
	c.subMux.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// setChatStreams installs the message and typing streams for one chat,
// closing any previous pair for the same chat.
func (c *Client) setChatStreams(chatID string, msgs *realtime.MessageStream, typ *realtime.TypingStream) {
	c.subMux.Lock()
	prevMsgs := c.msgStreams[chatID]
	prevTyp := c.typStreams[chatID]
	c.msgStreams[chatID] = msgs
	c.typStreams[chatID] = typ
	c.subMux.Unlock()
	if prevMsgs != nil {
		prevMsgs.Close()
	}
	if prevTyp != nil {
		prevTyp.Close()
	}
}

// closeChatStreams releases the streams for one chat.
func (c *Client) closeChatStreams(chatID string) {
	c.subMux.Lock()
	msgs := c.msgStreams[chatID]
	typ := c.typStreams[chatID]
	delete(c.msgStreams, chatID)
	delete(c.typStreams, chatID)
	c.subMux.Unlock()
	if msgs != nil {
		msgs.Close()
	}
	if typ != nil {
		typ.Close()
	}
}

// closeSubscriptions releases everything this connection opened.
func (c *Client) closeSubscriptions() {
	c.subMux.Lock()
	chatList := c.chatList
	c.chatList = nil
	msgStreams := c.msgStreams
	typStreams := c.typStreams
	c.msgStreams = make(map[string]*realtime.MessageStream)
	c.typStreams = make(map[string]*realtime.TypingStream)
	c.subMux.Unlock()

	if chatList != nil {
		chatList.Close()
	}
	for _, s := range msgStreams {
		s.Close()
	}
	for _, s := range typStreams {
		s.Close()
	}
}

// HubMessage holds raw JSON from a client awaiting processing.
type HubMessage struct {
	client  *Client
	rawJSON []byte
}
