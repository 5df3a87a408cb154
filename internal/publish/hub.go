package publish

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/timeline"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type ClientGauge interface {
	ClientsChanged(n int)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub раздает обновления браузерным виджетам по WebSocket.
// Медленный клиент с переполненным буфером отключается, публикация не ждет никого.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	last     map[string][]byte // Последнее состояние по типу, отдается новым клиентам
	upgrader websocket.Upgrader
	gauge    ClientGauge
	logger   *zap.Logger
}

func NewHub(gauge ClientGauge, logger *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		last:     make(map[string][]byte),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		gauge:    gauge,
		logger:   logger.Named("hub"),
	}
}

func (h *Hub) PublishSnapshot(snap domain.Snapshot) {
	h.broadcast(newEnvelope(TypeSnapshot, snap), true)
}

func (h *Hub) PublishAlert(alert domain.Alert) {
	h.broadcast(newEnvelope(TypeAlert, alert), false)
}

func (h *Hub) PublishConnectivity(status domain.ConnectivityStatus) {
	h.broadcast(newEnvelope(TypeConnectivity, status), true)
}

func (h *Hub) PublishBuckets(tl timeline.Timeline, trend []timeline.TrendBucket) {
	h.broadcast(newEnvelope(TypeBuckets, BucketsPayload{Timeline: tl, Trend: trend}), true)
}

func (h *Hub) PublishNotice(n domain.Notice) {
	h.broadcast(newEnvelope(TypeNotice, n), false)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler принимает WebSocket подключения.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

		h.mu.Lock()
		// Новый клиент сразу получает текущее состояние
		for _, kind := range []string{TypeConnectivity, TypeSnapshot, TypeBuckets} {
			if msg, ok := h.last[kind]; ok {
				c.send <- msg
			}
		}
		h.clients[c] = struct{}{}
		n := len(h.clients)
		h.mu.Unlock()

		h.clientsChanged(n)
		h.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))

		go h.writePump(c)
		go h.readPump(c)
	}
}

func (h *Hub) broadcast(env Envelope, retain bool) {
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal envelope", zap.String("type", env.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	if retain {
		h.last[env.Type] = msg
	}
	var dropped int
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
			dropped++
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.logger.Warn("slow websocket clients dropped", zap.Int("count", dropped))
		h.clientsChanged(n)
	}
}

// removeLocked закрывает канал отправки, writePump по нему закрывает соединение.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	h.clientsChanged(n)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write error", zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump нужен только для pong и обнаружения закрытия: входящие сообщения игнорируются.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
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

func (h *Hub) clientsChanged(n int) {
	if h.gauge != nil {
		h.gauge.ClientsChanged(n)
	}
}
