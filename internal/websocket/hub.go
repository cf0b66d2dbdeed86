package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"owl-widget/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser validates a widget token.
type TokenParser interface {
	ParseToken(token string) (uuid.UUID, string, error)
}

// SnapshotSource returns the current state of a widget, used to prime new
// connections.
type SnapshotSource func(id uuid.UUID) (models.WidgetSnapshot, bool)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub pushes widget snapshots to the browsers showing them. With a Redis
// client, snapshots are published on widget_updates:<id> so any server
// instance holding the socket can deliver them; without one, delivery is
// local only.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	cancelFuncs map[uuid.UUID]context.CancelFunc

	redisClient *redis.Client
	tokens      TokenParser
	snapshots   SnapshotSource
	logger      *zap.Logger
}

func NewHub(redisClient *redis.Client, tokens TokenParser, snapshots SnapshotSource, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		tokens:      tokens,
		snapshots:   snapshots,
		logger:      logger,
	}
}

func channelName(widgetID uuid.UUID) string {
	return "widget_updates:" + widgetID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	widgetID, _, err := h.tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if q := r.URL.Query().Get("widget"); q != "" && q != widgetID.String() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var initial []byte
	if h.snapshots != nil {
		snap, ok := h.snapshots(widgetID)
		if !ok {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		initial, _ = json.Marshal(snap)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.registerConnection(widgetID, c)
	if initial != nil {
		c.write(initial)
	}

	go func() {
		defer h.unregisterConnection(widgetID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(widgetID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[widgetID] = append(h.connections[widgetID], c)

	if h.redisClient != nil && len(h.connections[widgetID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[widgetID] = cancel
		go h.subscribeToPubSub(ctx, widgetID)
	}

	h.logger.Debug("websocket connected",
		zap.String("widget_id", widgetID.String()),
		zap.Int("connections", len(h.connections[widgetID])))
}

func (h *Hub) unregisterConnection(widgetID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[widgetID]
	for i, existing := range conns {
		if existing == c {
			h.connections[widgetID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[widgetID]) == 0 {
		delete(h.connections, widgetID)
		if cancel, ok := h.cancelFuncs[widgetID]; ok {
			cancel()
			delete(h.cancelFuncs, widgetID)
		}
	}

	h.logger.Debug("websocket disconnected", zap.String("widget_id", widgetID.String()))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, widgetID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(widgetID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(widgetID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(widgetID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[widgetID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Debug("websocket write failed",
				zap.String("widget_id", widgetID.String()),
				zap.Error(err))
		}
	}
}

// Publish delivers a snapshot to every browser showing the widget.
func (h *Hub) Publish(snap models.WidgetSnapshot) {
	id, err := uuid.Parse(snap.ID)
	if err != nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	if h.redisClient == nil {
		h.broadcast(id, data)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.redisClient.Publish(ctx, channelName(id), data).Err(); err != nil {
		h.logger.Warn("failed to publish widget update",
			zap.String("widget_id", snap.ID),
			zap.Error(err))
		h.broadcast(id, data)
	}
}

// Connections reports how many sockets are open for a widget.
func (h *Hub) Connections(widgetID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[widgetID])
}
