package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
)

// SessionHandler receives the lifecycle of every connection. OnConnect returns
// the identifier assigned to the connection; OnMessage and OnDisconnect are
// called with it. OnDisconnect is called exactly once per accepted connection.
type SessionHandler interface {
	OnConnect(sender *Client) (string, error)
	OnMessage(id string, data []byte)
	OnDisconnect(id string)
}

type Manager struct {
	clients  map[string]*Client
	mutex    sync.RWMutex
	closing  bool
	pumps    sync.WaitGroup
	handler  SessionHandler
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	metrics  *metrics.WebSocketMetrics
}

type Client struct {
	ID         string
	Connection *websocket.Conn
	Connected  time.Time
	LastPingAt time.Time

	manager *Manager
	send    chan []byte
	closed  bool
	mu      sync.Mutex
}

func NewManager(cfg config.WebSocketConfig, handler SessionHandler, logger *zap.Logger) *Manager {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	return &Manager{
		clients: make(map[string]*Client),
		handler: handler,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (m *Manager) SetMetrics(metrics *metrics.WebSocketMetrics) {
	m.metrics = metrics
}

func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) {
	m.mutex.RLock()
	closing := m.closing
	m.mutex.RUnlock()
	if closing {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade to WebSocket", zap.Error(err))

		if m.metrics != nil {
			m.metrics.UpgradeErrorCount.Inc()
		}

		return
	}

	now := time.Now()
	client := &Client{
		Connection: conn,
		Connected:  now,
		LastPingAt: now,
		manager:    m,
		send:       make(chan []byte, m.cfg.SendBuffer),
	}

	m.pumps.Add(1)
	go client.writePump()

	id, err := m.handler.OnConnect(client)
	if err != nil {
		m.logger.Warn("Rejected WebSocket connection", zap.Error(err))
		client.closeSend()
		return
	}
	client.ID = id

	m.mutex.Lock()
	m.clients[id] = client

	if m.metrics != nil {
		m.metrics.ActiveConnections.Set(float64(len(m.clients)))
		m.metrics.ConnectionsTotal.Inc()
	}

	m.mutex.Unlock()

	m.logger.Debug("WebSocket connection accepted",
		zap.String("clientID", id),
		zap.String("remoteAddr", r.RemoteAddr))

	m.pumps.Add(1)
	go client.readPump()
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	delete(m.clients, client.ID)

	if m.metrics != nil {
		m.metrics.ActiveConnections.Set(float64(len(m.clients)))
		m.metrics.ConnectionDuration.Observe(time.Since(client.Connected).Seconds())
	}

	m.mutex.Unlock()

	client.closeSend()
	m.handler.OnDisconnect(client.ID)
}

func (m *Manager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Close stops accepting connections, sends a close frame to every client and
// waits for their pumps to exit or for ctx to expire.
func (m *Manager) Close(ctx context.Context) error {
	m.logger.Info("Closing WebSocket manager")

	m.mutex.Lock()
	m.closing = true
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mutex.Unlock()

	deadline := time.Now().Add(m.cfg.WriteWait)
	for _, client := range clients {
		_ = client.Connection.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
			deadline)
		client.Connection.Close()
	}

	done := make(chan struct{})
	go func() {
		m.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("WebSocket manager closed", zap.Int("clients", len(clients)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues msg for delivery. It never blocks: false means the connection
// is closed or its send buffer is full.
func (c *Client) Send(msg models.ServerMessage) bool {
	data, err := models.EncodeServerMessage(msg)
	if err != nil {
		c.manager.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		if c.manager.metrics != nil {
			c.manager.metrics.MessagesSent.WithLabelValues(string(msg.MessageType())).Inc()
		}
		return true
	default:
		if c.manager.metrics != nil {
			c.manager.metrics.SendBufferOverflow.Inc()
		}
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.manager.removeClient(c)
		c.Connection.Close()
		c.manager.pumps.Done()
	}()

	cfg := c.manager.cfg
	if cfg.ReadLimit > 0 {
		c.Connection.SetReadLimit(cfg.ReadLimit)
	}
	c.Connection.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Connection.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPingAt = time.Now()
		c.mu.Unlock()
		c.Connection.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		messageType, message, err := c.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				c.manager.logger.Info("WebSocket closed unexpectedly",
					zap.Error(err),
					zap.String("clientID", c.ID))

				if c.manager.metrics != nil {
					c.manager.metrics.UnexpectedCloseCount.Inc()
				}
			}
			break
		}

		c.Connection.SetReadDeadline(time.Now().Add(cfg.PongWait))

		if c.manager.metrics != nil {
			c.manager.metrics.BytesReceived.Add(float64(len(message)))
			c.manager.metrics.MessagesReceived.WithLabelValues(frameType(messageType)).Inc()
		}

		c.manager.handler.OnMessage(c.ID, message)
	}
}

// writePump owns every data write on the connection. Each queued message is
// written as its own text frame.
func (c *Client) writePump() {
	cfg := c.manager.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
		c.manager.pumps.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Connection.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			if c.manager.metrics != nil {
				c.manager.metrics.BytesSent.Add(float64(len(message)))
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func frameType(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "other"
	}
}
