package jobmanager

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/gorilla/websocket"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = 30 * time.Second
	eventBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHub streams job events to websocket subscribers. Each subscriber
// sees only the jobs it is entitled to: its own, one portfolio's, or all
// of them for admins.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	closed  bool
	logger  *common.Logger
}

// Subscription selects the events a subscriber receives.
type Subscription struct {
	OwnerID     string
	PortfolioID string // empty means every portfolio of OwnerID
	All         bool
}

func (s Subscription) accepts(job *models.Job) bool {
	if s.All {
		return s.PortfolioID == "" || job.PortfolioID == s.PortfolioID
	}
	if s.PortfolioID != "" {
		return job.PortfolioID == s.PortfolioID
	}
	return job.OwnerID == s.OwnerID
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	filter Subscription
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *common.Logger) *EventHub {
	return &EventHub{
		clients: make(map[*subscriber]struct{}),
		logger:  logger,
	}
}

// Publish fans an event out to matching subscribers. Subscribers whose
// buffer is full are disconnected rather than blocking the job processors.
func (h *EventHub) Publish(event models.JobEvent) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.mu.RUnlock()
		h.logger.Warn().Err(err).Msg("Failed to marshal job event")
		return
	}
	var slow []*subscriber
	for c := range h.clients {
		if !c.filter.accepts(event.Job) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.drop(c)
	}
}

// Serve upgrades the request to a websocket and streams events matching sub
// until the client goes away.
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request, sub Subscription) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &subscriber{conn: conn, send: make(chan []byte, eventBuffer), filter: sub}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", count).Msg("Job event subscriber connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every subscriber and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*subscriber, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// drop removes c and closes its send channel exactly once.
func (h *EventHub) drop(c *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

func (h *EventHub) writeLoop(c *subscriber) {
	ping := time.NewTicker(eventPingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages; it exists to notice disconnects and
// answer pongs.
func (h *EventHub) readLoop(c *subscriber) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
