package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/metrics"
)

const (
	relayKey   = "ws-relay"
	writeWait  = 5 * time.Second
	relayQueue = 64
)

// Notification is one bus publication as sent to WebSocket clients.
type Notification struct {
	Channel domain.Channel `json:"channel"`
	Payload any            `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// WebSocketManager fans bus notifications out to every connected client.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	mutex      sync.RWMutex
	logger     *zap.Logger

	// closed when Start returns
	stopped chan struct{}
}

func NewWebSocketManager(l *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, relayQueue),
		logger:     l,
		stopped:    make(chan struct{}),
	}
}

// Attach relays every channel of b to the connected clients.
func (wsm *WebSocketManager) Attach(b *bus.Bus) {
	b.SubscribeAll(relayKey, func(_ context.Context, ch domain.Channel, payload any) error {
		wsm.Broadcast(Notification{Channel: ch, Payload: payload, At: time.Now()})
		return nil
	})
}

// Start runs the client loop until ctx is done, then closes every client.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	defer close(wsm.stopped)
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for client := range wsm.clients {
				client.Close()
				delete(wsm.clients, client)
			}
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			n := len(wsm.clients)
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			wsm.logger.Debug("websocket client connected", zap.Int("clients", n))

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			n := len(wsm.clients)
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			wsm.logger.Debug("websocket client disconnected", zap.Int("clients", n))

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for client := range wsm.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					wsm.logger.Debug("dropping websocket client", zap.Error(err))
					client.Close()
					delete(wsm.clients, client)
				}
			}
			metrics.WebSocketClients.Set(float64(len(wsm.clients)))
			wsm.mutex.Unlock()
		}
	}
}

// Broadcast queues n for delivery. A full queue drops the message rather
// than stalling the publisher.
func (wsm *WebSocketManager) Broadcast(n Notification) {
	message, err := json.Marshal(n)
	if err != nil {
		wsm.logger.Warn("cannot encode notification", zap.String("channel", string(n.Channel)), zap.Error(err))
		return
	}
	select {
	case wsm.broadcast <- message:
	default:
		wsm.logger.Warn("websocket queue full, dropping notification", zap.String("channel", string(n.Channel)))
	}
}

func (wsm *WebSocketManager) Clients() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades only where checkOrigin allows.
func NewWebSocketHandler(wsManager *WebSocketManager, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsManager.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	select {
	case h.wsManager.register <- conn:
	case <-h.wsManager.stopped:
		conn.Close()
		return
	}

	// clients only listen; reading detects the disconnect
	go func() {
		defer func() {
			select {
			case h.wsManager.unregister <- conn:
			case <-h.wsManager.stopped:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
		}
	}()
}
