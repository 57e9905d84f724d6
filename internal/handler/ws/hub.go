package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketMood/internal/domain/models"
	xlogger "MarketMood/pkg/logger"
	"MarketMood/pkg/util"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RunSummary is the compact run event pushed to subscribers.
type RunSummary struct {
	Type          string           `json:"type"`
	RunID         string           `json:"run_id"`
	Status        models.RunStatus `json:"status"`
	AsOfDate      string           `json:"as_of_date,omitempty"`
	MarketsSaved  int              `json:"markets_saved"`
	MarketsFailed int              `json:"markets_failed"`
	Edges         int              `json:"edges"`
	DurationMs    int64            `json:"duration_ms"`
	Moods         []MoodEntry      `json:"moods"`
}

// MoodEntry is one market's mood inside a RunSummary.
type MoodEntry struct {
	MarketID  string           `json:"market_id"`
	MoodIndex float64          `json:"mood_index"`
	MoodLevel models.MoodLevel `json:"mood_level"`
}

type client struct {
	conn *websocket.Conn
	send chan RunSummary
}

// Hub fans run summaries out to connected websocket clients. Slow clients
// whose buffer is full are disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	logger  *xlogger.Logger
}

func NewHub(logger *xlogger.Logger) *Hub {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the request and registers the connection.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan RunSummary, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", xlogger.String("remote", c.RealIP()), xlogger.Int("clients", n))

	go h.writePump(cl)
	go h.readPump(cl)
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// NotifyRun broadcasts a summary of r. It never blocks on a client.
func (h *Hub) NotifyRun(_ context.Context, r models.RunReport) error {
	h.Broadcast(Summarize(r))
	return nil
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			h.logger.Warn("websocket client too slow, dropping")
			h.removeLocked(cl)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		h.removeLocked(cl)
	}
	return nil
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl)
}

func (h *Hub) removeLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
}

// readPump discards client messages and keeps the read deadline alive.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.remove(cl)
		_ = cl.conn.Close()
	}()
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", xlogger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write error", xlogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Summarize projects a run report onto the push payload.
func Summarize(r models.RunReport) RunSummary {
	s := RunSummary{
		Type:       "pipeline_run",
		RunID:      r.RunID,
		Status:     r.Status,
		DurationMs: r.Duration().Milliseconds(),
		Moods:      make([]MoodEntry, 0, len(r.Moods)),
	}
	if !r.AsOfDate.IsZero() {
		s.AsOfDate = util.FormatDate(r.AsOfDate)
	}
	if r.Persist != nil {
		s.MarketsSaved = r.Persist.MarketsSaved
		s.MarketsFailed = r.Persist.MarketsFailed
		s.Edges = r.Persist.CorrelationsSaved
	}
	for _, m := range r.Moods {
		s.Moods = append(s.Moods, MoodEntry{MarketID: m.MarketID, MoodIndex: m.Mood.MoodIndex, MoodLevel: m.Mood.MoodLevel})
	}
	return s
}
