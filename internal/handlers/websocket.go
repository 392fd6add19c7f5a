package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"paperpayout-client/internal/logger"
	"paperpayout-client/internal/services"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes a freshly composed view to every connected viewer
// whenever any slice of client state changes.
type WebSocketHandler struct {
	app *services.App
	hub *WebSocketHub
	log *zap.Logger
}

// WebSocketHub is the only goroutine that sends on or closes a client's
// send channel.
type WebSocketHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	direct     chan reply
	changes    chan services.Slice
	compose    func() ViewState
	done       <-chan struct{}
	log        *zap.Logger
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	send chan *Message
}

// reply is addressed to one client. A nil msg asks for a fresh view.
type reply struct {
	client *Client
	msg    *Message
}

type Message struct {
	Type  string         `json:"type"`
	Slice services.Slice `json:"slice,omitempty"`
	Data  interface{}    `json:"data"`
}

func NewWebSocketHandler(ctx context.Context, app *services.App, log *zap.Logger) *WebSocketHandler {
	log = logger.OrNop(log).Named("ws")
	hub := newHub(ctx, func() ViewState { return Compose(app) }, log)

	h := &WebSocketHandler{app: app, hub: hub, log: log}
	app.Feed().Attach(h)
	return h
}

func newHub(ctx context.Context, compose func() ViewState, log *zap.Logger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan reply),
		changes:    make(chan services.Slice, 64),
		compose:    compose,
		done:       ctx.Done(),
		log:        logger.OrNop(log),
	}
	go hub.run(ctx)
	return hub
}

// BroadcastChange never blocks the controller that changed state; when the
// queue is full the pending snapshot already covers this change.
func (h *WebSocketHandler) BroadcastChange(slice services.Slice) {
	select {
	case h.hub.changes <- slice:
	default:
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		send: make(chan *Message, clientBacklog),
	}

	if !h.hub.join(client) {
		conn.Close()
		return
	}
	go client.writePump()
	defer h.hub.leave(client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "PING":
			h.hub.send(client, &Message{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}})
		case "SYNC":
			h.hub.send(client, nil)
		}
	}
}

func (hub *WebSocketHub) join(client *Client) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

func (hub *WebSocketHub) leave(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
	}
}

// send queues msg for one client through the hub goroutine.
func (hub *WebSocketHub) send(client *Client, msg *Message) {
	select {
	case hub.direct <- reply{client: client, msg: msg}:
	case <-hub.done:
	}
}

func (hub *WebSocketHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id, client := range hub.clients {
				close(client.send)
				delete(hub.clients, id)
			}
			return

		case client := <-hub.register:
			hub.clients[client.ID] = client
			client.trySend(&Message{Type: "VIEW", Data: hub.compose()})
			hub.log.Debug("client registered", zap.String("client", client.ID))

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.ID]; ok {
				delete(hub.clients, client.ID)
				close(client.send)
				hub.log.Debug("client unregistered", zap.String("client", client.ID))
			}

		case r := <-hub.direct:
			if hub.clients[r.client.ID] != r.client {
				continue
			}
			msg := r.msg
			if msg == nil {
				msg = &Message{Type: "VIEW", Data: hub.compose()}
			}
			if !r.client.trySend(msg) {
				hub.drop(r.client)
			}

		case slice := <-hub.changes:
			hub.broadcast(&Message{Type: "VIEW", Slice: slice, Data: hub.compose()})
		}
	}
}

func (hub *WebSocketHub) broadcast(msg *Message) {
	for _, client := range hub.clients {
		if !client.trySend(msg) {
			hub.drop(client)
		}
	}
}

// drop disconnects a slow viewer; it can reconnect and resync.
func (hub *WebSocketHub) drop(client *Client) {
	delete(hub.clients, client.ID)
	close(client.send)
	if client.Conn != nil {
		client.Conn.Close()
	}
}

func (c *Client) trySend(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()
	for msg := range c.send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(writeWait))
}
