package channels

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// wsEvent is pushed to every connected page.
type wsEvent struct {
	Event   string       `json:"event"` // "message", "scroll" or "visibility"
	Message *wireMessage `json:"message,omitempty"`
	Open    *bool        `json:"open,omitempty"`
}

// writeJSON encodes without HTML escaping; rendered replies are sent as-is.
func writeJSON(conn *websocket.Conn, v interface{}) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return w.Close()
}

// hub fans transcript changes out to open pages.
type hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]*sync.Mutex // per-connection write locks
	origins []string
	wg      sync.WaitGroup
}

func newHub(allowOrigins []string) *hub {
	return &hub{
		conns:   map[*websocket.Conn]*sync.Mutex{},
		origins: allowOrigins,
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) broadcast(ev wsEvent) {
	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, mu := range h.conns {
		targets[c] = mu
	}
	h.mu.Unlock()

	for c, mu := range targets {
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
		err := writeJSON(c, ev)
		mu.Unlock()
		if err != nil {
			logger.DebugCF("webchat", "Dropping websocket after write error", map[string]interface{}{"error": err.Error()})
			_ = c.Close()
		}
	}
}

// checkOrigin allows same-host pages, plus whatever allow_origins lists ("*" for any).
func (h *hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// serve upgrades the request and keeps the connection until the page goes away.
// backlog is written first so a fresh page starts from the full transcript.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, backlog []wireMessage) {
	upgrader := websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("webchat", "Websocket upgrade failed", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	mu := &sync.Mutex{}
	mu.Lock()
	for i := range backlog {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := writeJSON(conn, wsEvent{Event: "message", Message: &backlog[i]}); err != nil {
			break
		}
	}
	mu.Unlock()

	h.mu.Lock()
	h.conns[conn] = mu
	h.mu.Unlock()
	h.wg.Add(1)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				mu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		close(done)
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()

		mu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		mu.Unlock()
		h.wg.Done()
	}()

	// Pages send through POST /chat/send; anything read here only keeps the deadline fresh.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

// shutdown tells every page the server is going away and waits for the readers to exit.
func (h *hub) shutdown() {
	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, mu := range h.conns {
		targets[c] = mu
	}
	h.mu.Unlock()

	for c, mu := range targets {
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		_ = c.Close()
		mu.Unlock()
	}
	h.wg.Wait()
}
