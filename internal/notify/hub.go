// Package notify рассылает события неба подключённым клиентам.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/model"
)

const (
	clientBuffer    = 32
	broadcastBuffer = 256
)

// Client описывает подписчика на события неба.
type Client struct {
	accountID   int64
	send        chan []byte
	connectedAt time.Time
}

// NewClient создаёт подписчика для указанного пользователя.
func NewClient(accountID int64) *Client {
	return &Client{
		accountID:   accountID,
		send:        make(chan []byte, clientBuffer),
		connectedAt: time.Now(),
	}
}

// Messages возвращает канал готовых SSE-сообщений. Канал закрывается при отключении.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub раздаёт события всем подключённым клиентам процесса. События личного неба
// получает только владелец звезды.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
	logger  *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan model.StarEvent
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub создаёт Hub. Для работы нужно запустить Run.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		logger:     logger.With(zap.String("component", "sse")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan model.StarEvent, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run обрабатывает подключения и рассылку до вызова Close.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("sse client registered", zap.Int64("accountID", c.accountID), zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug("sse client unregistered",
				zap.Int64("accountID", c.accountID),
				zap.Duration("connected", time.Since(c.connectedAt)))

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(ev model.StarEvent) {
	msg, err := formatEvent(ev)
	if err != nil {
		h.logger.Error("encode star event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if ev.Star.Sky == model.SkyPersonal && c.accountID != ev.Star.OwnerID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("sse messages dropped, client buffer full", zap.Int("dropped", dropped))
	}
}

// Register подключает клиента.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister отключает клиента.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish ставит событие в очередь рассылки. При переполнении очереди событие теряется:
// клиенты догоняют состояние при следующей загрузке неба.
func (h *Hub) Publish(_ context.Context, ev model.StarEvent) error {
	select {
	case h.broadcast <- ev:
		return nil
	default:
		return fmt.Errorf("sse broadcast queue full")
	}
}

// Close останавливает Hub и закрывает каналы всех клиентов.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount возвращает число подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func formatEvent(ev model.StarEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte("event: " + string(ev.Type) + "\ndata: " + string(data) + "\n\n"), nil
}
