package api

import (
	"net/http"
	"sync"
	"time"

	"remobridge/internal/remo"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateEnvelope is the message pushed to WebSocket clients after every
// successful refresh or command merge
type stateEnvelope struct {
	Type    string      `json:"type"`
	Account string      `json:"account"`
	State   *remo.State `json:"state"`
}

// hub tracks connected WebSocket clients and fans state updates out to them
type hub struct {
	logger  *zap.Logger
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	writeMu sync.Mutex // Protects websocket writes
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("WebSocket client connected",
		zap.String("remote_addr", r.RemoteAddr))

	// Reader loop handles control frames and detects disconnects. Clients
	// are not expected to send data messages.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcastState pushes an account's current snapshot to every connected
// client, dropping clients whose write fails
func (h *hub) broadcastState(accountName string, state *remo.State) {
	envelope := stateEnvelope{
		Type:    "state",
		Account: accountName,
		State:   state,
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(envelope); err != nil {
			h.logger.Debug("WebSocket write failed, dropping client", zap.Error(err))
			h.drop(conn)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
}
