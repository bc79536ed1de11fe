// Package websocket pushes request updates to subscribed clients. A client
// connects to /ws/requests/{request_id}, authenticates with a first-frame
// auth message, and then receives a request_update message after every
// committed mutation of that request.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ride-market/internal/domain/user"
	"ride-market/internal/general/jwt"
	"ride-market/internal/general/logger"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	wsAuthTimeout    = 5 * time.Second
	wsReadLimit      = 1 << 20 // 1 MiB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Feed fans request updates out to WebSocket subscribers.
type Feed struct {
	logger *logger.Logger
	jwtMgr *jwt.Manager

	mu         sync.RWMutex
	subs       map[string]map[*websocket.Conn]struct{} // request id -> conns
	writeLocks sync.Map                                // *websocket.Conn -> *sync.Mutex
}

// NewFeed creates a request-update feed with JWT auth.
func NewFeed(logger *logger.Logger, jwtMgr *jwt.Manager) *Feed {
	return &Feed{
		logger: logger,
		jwtMgr: jwtMgr,
		subs:   make(map[string]map[*websocket.Conn]struct{}),
	}
}

// HandleRequestFeed upgrades the connection, authenticates the first frame
// and keeps the subscription open until the client goes away.
// Route: GET /ws/requests/{request_id}
func (f *Feed) HandleRequestFeed(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	if requestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer f.writeLocks.Delete(conn)

	conn.SetReadLimit(wsReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthTimeout)); err != nil {
		f.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return
	}

	// first frame must be {"type":"auth","token":"Bearer <jwt>"}
	_, firstFrame, err := conn.ReadMessage()
	if err != nil {
		f.logger.Debug(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", map[string]any{
			"request_id": requestID,
		})
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, f.jwtMgr, user.RoleRider, user.RoleDriver, user.RoleAdmin)
	if err != nil {
		f.logger.Debug(r.Context(), "ws_auth_failed", "WebSocket authentication failed", map[string]any{
			"request_id": requestID,
			"error":      err.Error(),
		})
		f.wsWriteClose(conn, websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	// authenticated; no further client frames expected, only pings
	_ = conn.SetReadDeadline(time.Time{})
	conn.SetPongHandler(func(string) error { return nil })

	f.subscribe(requestID, conn)
	defer f.unsubscribe(requestID, conn)

	_ = f.writeJSON(conn, map[string]any{
		"type":       "subscribed",
		"request_id": requestID,
	})

	f.logger.Info(r.Context(), "ws_subscribed", "Client subscribed to request feed", map[string]any{
		"request_id": requestID,
		"user_id":    res.Claims.Subject,
	})

	// read loop: drain control frames and detect disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends a payload to every subscriber of the request. Dead
// connections are dropped on write failure.
func (f *Feed) Broadcast(requestID string, payload []byte) {
	f.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(f.subs[requestID]))
	for conn := range f.subs[requestID] {
		conns = append(conns, conn)
	}
	f.mu.RUnlock()

	for _, conn := range conns {
		if err := f.wsWriteMessage(conn, websocket.TextMessage, payload); err != nil {
			f.unsubscribe(requestID, conn)
			_ = conn.Close()
		}
	}
}

// SubscriberCount reports how many connections follow a request.
func (f *Feed) SubscriberCount(requestID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[requestID])
}

// --- subscription bookkeeping ---

func (f *Feed) subscribe(requestID string, conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.subs[requestID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		f.subs[requestID] = set
	}
	set[conn] = struct{}{}
}

func (f *Feed) unsubscribe(requestID string, conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.subs[requestID]
	delete(set, conn)
	if len(set) == 0 {
		delete(f.subs, requestID)
	}
}
