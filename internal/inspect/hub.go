package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/pkg/generic"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
	clientQueue  = 8
)

// Hub fans snapshots out to websocket clients. Publish is called from the
// tick thread; Run does the fan-out on its own goroutine.
type Hub struct {
	logger   log.Log
	upgrader websocket.Upgrader
	incoming chan []byte
	buffers  *generic.Pool[*bytes.Buffer]

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte

	published atomic.Uint64
	dropped   atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger log.Log) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{
		logger: logger.With(log.String("component", "inspector")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		incoming: make(chan []byte, 1),
		buffers:  generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset),
		clients:  make(map[*client]struct{}),
	}
}

// Publish encodes snap and hands it to Run. It drops the snapshot and
// returns false when the previous one has not been picked up yet.
func (h *Hub) Publish(snap Snapshot) bool {
	buf := h.buffers.Get()
	defer h.buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(snap); err != nil {
		h.logger.Warn("snapshot encoding failed", log.Error(err))
		h.dropped.Add(1)
		return false
	}
	data := bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	select {
	case h.incoming <- data:
		h.published.Add(1)
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Stats reports published and dropped snapshot counts.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run broadcasts published snapshots until ctx ends, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case data := <-h.incoming:
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("slow inspector client, snapshot skipped",
				log.String("remote", c.conn.RemoteAddr().String()))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP upgrades the request and streams snapshots to the client. The
// most recent snapshot is sent right after the upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()
	h.logger.Info("inspector client connected", log.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client input and unregisters the client once the
// connection is gone.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		h.logger.Info("inspector client disconnected", log.String("remote", c.conn.RemoteAddr().String()))
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("inspector read failed", log.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "inspector stopped"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
