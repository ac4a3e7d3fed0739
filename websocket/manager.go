package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 512
)

// Event is the envelope for every frame the server sends.
type Event struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

type inbound struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

type subscription struct {
	client *Client
	topic  string
	join   bool
}

type publication struct {
	topic string
	msg   []byte
}

// Manager fans events out to the clients subscribed to a topic such as
// "forum:<id>" or "post:<id>".
type Manager struct {
	clients    map[*Client]bool
	topics     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	publish    chan publication
	done       chan struct{}
	log        *zap.Logger
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager

	mu     sync.Mutex
	closed bool
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		publish:    make(chan publication, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Start runs the hub loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for client := range m.clients {
				m.drop(client)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.mu.Unlock()
			m.log.Debug("websocket client registered", zap.String("user_id", client.userID), zap.Int("clients", total))

		case client := <-m.unregister:
			m.mu.Lock()
			m.drop(client)
			total := len(m.clients)
			m.mu.Unlock()
			m.log.Debug("websocket client unregistered", zap.String("user_id", client.userID), zap.Int("clients", total))

		case sub := <-m.subscribe:
			m.mu.Lock()
			if _, ok := m.clients[sub.client]; ok {
				if sub.join {
					if m.topics[sub.topic] == nil {
						m.topics[sub.topic] = make(map[*Client]bool)
					}
					m.topics[sub.topic][sub.client] = true
				} else {
					m.leave(sub.client, sub.topic)
				}
			}
			m.mu.Unlock()

		case pub := <-m.publish:
			m.mu.Lock()
			for client := range m.topics[pub.topic] {
				select {
				case client.send <- pub.msg:
				default:
					m.drop(client)
				}
			}
			m.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (m *Manager) drop(client *Client) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	for topic := range m.topics {
		m.leave(client, topic)
	}
	client.close()
}

func (m *Manager) leave(client *Client, topic string) {
	subs, ok := m.topics[topic]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(m.topics, topic)
	}
}

// Publish sends an event to every subscriber of topic. It never blocks the
// caller on a slow client.
func (m *Manager) Publish(topic, eventType string, payload interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Topic: topic, Payload: payload})
	if err != nil {
		m.log.Error("marshal websocket event", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case m.publish <- publication{topic: topic, msg: msg}:
	default:
		m.log.Warn("websocket publish queue full, event dropped", zap.String("topic", topic), zap.String("type", eventType))
	}
}

// sendSub hands a subscription change message to the hub loop unless it has stopped.
func (m *Manager) sendSub(sub subscription) bool {
	select {
	case m.subscribe <- sub:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) GetConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Subscribers returns how many clients currently listen on topic.
func (m *Manager) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topic])
}

// Authenticator resolves a bearer token to a user id.
type Authenticator func(ctx context.Context, token string) (string, error)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func WebSocketHandler(manager *Manager, authenticate Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		userID, err := authenticate(r.Context(), token)
		if err != nil {
			manager.log.Debug("websocket connection rejected", zap.Error(err))
			http.Error(w, "Token is not valid", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			manager.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, 256),
			manager: manager,
		}

		select {
		case manager.register <- client:
		case <-manager.done:
			conn.Close()
			return
		}
		client.emit(Event{Type: "connected", Payload: map[string]interface{}{
			"userId": userID,
			"time":   time.Now().Unix(),
		}})

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.log.Debug("websocket read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil {
			c.emit(Event{Type: "error", Payload: "malformed message"})
			continue
		}

		switch in.Type {
		case "subscribe", "unsubscribe":
			if in.Topic == "" {
				c.emit(Event{Type: "error", Payload: "topic required"})
				continue
			}
			if !c.manager.sendSub(subscription{client: c, topic: in.Topic, join: in.Type == "subscribe"}) {
				return
			}
			c.emit(Event{Type: in.Type + "d", Topic: in.Topic})
		case "ping":
			c.emit(Event{Type: "pong", Payload: map[string]interface{}{"time": time.Now().Unix()}})
		default:
			c.emit(Event{Type: "error", Payload: "unknown message type"})
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
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// emit queues a direct reply to this client, dropping it when the buffer is
// full or the hub has already closed the connection.
func (c *Client) emit(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
