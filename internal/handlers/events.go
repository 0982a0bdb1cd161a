package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"media-editor/internal/database"
	"media-editor/internal/metrics"
	"media-editor/internal/orchestrator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBuffer     = 64
	progressPeriod = 500 * time.Millisecond
)

// Hub consumes orchestrator results, keeps export history current and
// fans every result out to websocket subscribers as JSON.
type Hub struct {
	db       *database.Database
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	// Per-job progress bookkeeping, touched only by Publish.
	lastFrame map[string]int
	lastWrite map[string]time.Time
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub recording export history in db. db may be nil.
func NewHub(db *database.Database) *Hub {
	return &Hub{
		db: db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:   make(map[*client]struct{}),
		lastFrame: make(map[string]int),
		lastWrite: make(map[string]time.Time),
	}
}

// Publish records r in export history and sends it to every subscriber.
// It must not be called concurrently with itself.
func (h *Hub) Publish(ctx context.Context, r orchestrator.Result) {
	h.record(ctx, r)
	h.Broadcast(r)
}

// record mirrors encode results into the exports table.
func (h *Hub) record(ctx context.Context, r orchestrator.Result) {
	if h.db == nil || r.Job == "" {
		return
	}
	var err error
	switch r.Kind {
	case orchestrator.ResultEncodeProgress:
		h.lastFrame[r.Job] = r.FrameIndex
		if time.Since(h.lastWrite[r.Job]) < progressPeriod && r.FrameIndex < r.Total {
			return
		}
		h.lastWrite[r.Job] = time.Now()
		err = h.db.UpdateExportProgress(ctx, r.Job, r.FrameIndex, r.Total)
	case orchestrator.ResultEncodeDone:
		err = h.db.FinishExport(ctx, r.Job, database.ExportDone, r.FrameIndex, "")
		h.forget(r.Job)
	case orchestrator.ResultEncodeError:
		status := database.ExportError
		if r.Cancelled() {
			status = database.ExportCancelled
		}
		err = h.db.FinishExport(ctx, r.Job, status, h.lastFrame[r.Job], r.Message)
		h.forget(r.Job)
	default:
		return
	}
	if err != nil {
		log.Warn("record %s for job %s: %v", r.Kind, r.Job, err)
	}
}

func (h *Hub) forget(job string) {
	delete(h.lastFrame, job)
	delete(h.lastWrite, job)
}

// Broadcast sends r to every subscriber. Clients whose buffer is full miss
// the message.
func (h *Hub) Broadcast(r orchestrator.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		log.Error("marshal %s result: %v", r.Kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("dropping %s event for slow client %s", r.Kind, c.conn.RemoteAddr())
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.EventSubscribers.Set(float64(n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.EventSubscribers.Set(float64(n))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	metrics.EventSubscribers.Set(0)
}

// ServeEvents upgrades the request to a websocket that receives every
// orchestrator result. Messages from the client are ignored.
func (h *Handlers) ServeEvents(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

// ServeWS upgrades r and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Debug("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	log.Debug("event subscriber connected: %s", conn.RemoteAddr())

	go h.writePump(c)
	h.readPump(c)
}

// readPump handles pongs and notices the client going away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		log.Debug("event subscriber disconnected: %s", c.conn.RemoteAddr())
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
