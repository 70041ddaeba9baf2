package api

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// newUpgrader returns an upgrader whose origin check follows the CORS
// setting: "*" allows everything, a list allows its members and an empty
// setting allows same-origin requests only.
func newUpgrader(corsOrigins string) websocket.Upgrader {
	allowed := parseOrigins(corsOrigins)

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			switch {
			case corsOrigins == "*":
				return true
			case origin == "":
				return true // No origin header = same-origin request
			case corsOrigins == "":
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			default:
				return allowed[origin]
			}
		},
	}
}

// WebSocketHub fans timer events and log entries out to connected clients.
type WebSocketHub struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	done       chan struct{}
	stopOnce   sync.Once
	logCh      chan logger.LogEntry
}

// NewWebSocketHub starts a hub. eventBus may be nil, in which case only log
// entries are streamed.
func NewWebSocketHub(eventBus *eventbus.EventBus, corsOrigins string) *WebSocketHub {
	h := &WebSocketHub{
		upgrader:   newUpgrader(corsOrigins),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
		done:       make(chan struct{}),
		logCh:      logger.Subscribe(),
	}

	if eventBus != nil {
		eventBus.SubscribeAll(domain.AllTimerEvents, func(e domain.Event) {
			h.send(map[string]interface{}{"type": "event", "data": e})
		})
	}

	go func() {
		for {
			select {
			case entry, ok := <-h.logCh:
				if !ok {
					return
				}
				h.send(map[string]interface{}{"type": "log", "data": entry})
			case <-h.done:
				return
			}
		}
	}()

	go h.run()
	return h
}

// send queues message unless the hub has stopped.
func (h *WebSocketHub) send(message interface{}) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func (h *WebSocketHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			logger.Debugf("WebSocket client connected (Total: %d)", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := h.write(client, message); err != nil {
					logger.Debugf("WebSocket write error: %v", err)
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop closes and forgets client. Callers hold h.mu.
func (h *WebSocketHub) drop(client *websocket.Conn) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if err := client.Close(); err != nil {
		logger.Debugf("WebSocket close error: %v", err)
	}
	logger.Debugf("WebSocket client disconnected")
}

// write sends one JSON message. Callers hold h.mu so writes never interleave.
func (h *WebSocketHub) write(client *websocket.Conn, message interface{}) error {
	if err := client.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return client.WriteJSON(message)
}

// Stop disconnects every client and ends the hub goroutines. Calling it more
// than once is safe.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		logger.Unsubscribe(h.logCh)
	})
}

func (h *WebSocketHub) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	select {
	case h.register <- ws:
	case <-h.done:
		ws.Close()
		return
	}

	h.mu.Lock()
	if err := h.write(ws, gin.H{"type": "ping", "timestamp": time.Now()}); err != nil {
		logger.Debugf("Failed to send initial ping: %v", err)
	}
	h.mu.Unlock()

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debugf("Failed to set initial read deadline: %v", err)
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	stopPing := make(chan struct{})
	defer func() {
		ticker.Stop()
		close(stopPing)
	}()

	go func() {
		for {
			select {
			case <-ticker.C:
			case <-stopPing:
				return
			}
			h.mu.Lock()
			if !h.clients[ws] {
				h.mu.Unlock()
				return
			}
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			h.mu.Unlock()
			if err != nil {
				logger.Debugf("WebSocket ping error: %v", err)
				h.leave(ws)
				return
			}
		}
	}()

	defer h.leave(ws)

	// The read loop only keeps the pong handler running; client messages are ignored.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WebSocketHub) leave(ws *websocket.Conn) {
	select {
	case h.unregister <- ws:
	case <-h.done:
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
