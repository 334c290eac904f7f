package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

const writeWait = 10 * time.Second

type client struct {
	conn *websocket.Conn
	// conn.WriteJSON is not safe for concurrent use
	writeMu sync.Mutex
}

// ConnectionManager handles active WebSocket connections thread-safely
type ConnectionManager struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{clients: make(map[string]*client)}
}

func (cm *ConnectionManager) AddConnection(connID string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[connID] = &client{conn: conn}
}

// RemoveConnection closes the socket and forgets it
func (cm *ConnectionManager) RemoveConnection(connID string) {
	cm.mu.Lock()
	c, exists := cm.clients[connID]
	delete(cm.clients, connID)
	cm.mu.Unlock()

	if exists {
		c.conn.Close()
	}
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

func (cm *ConnectionManager) get(connID string) (*client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[connID]
	return c, ok
}

// Send writes one {"event","data"} frame. Unknown connections are ignored.
func (cm *ConnectionManager) Send(connID, event string, payload any) error {
	c, exists := cm.get(connID)
	if !exists {
		return nil // already disconnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(domain.Envelope[any]{Event: event, Data: payload})
}

// Ping shares the write lock with Send.
func (cm *ConnectionManager) Ping(connID string) error {
	c, exists := cm.get(connID)
	if !exists {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
