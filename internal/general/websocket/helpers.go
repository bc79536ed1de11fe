package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (f *Feed) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := f.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
	f.writeLocks.Delete(conn)
}

// wsWriteMessage sets a short write deadline and writes a message.
func (f *Feed) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := f.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// lockOf returns the write mutex for a specific connection.
func (f *Feed) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := f.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := f.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// writeJSON marshals v and writes a single TextMessage to the connection.
func (f *Feed) writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.wsWriteMessage(conn, websocket.TextMessage, payload)
}
