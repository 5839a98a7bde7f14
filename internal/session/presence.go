package session

import (
	"strings"
	"sync"
)

// PresenceTracker tracks which live kiosk connections are subscribed to a
// scanner's update group. The resolver uses it to gate scan processing:
// a bound user with no live UI must not silently accumulate cart state.
type PresenceTracker struct {
	mu sync.RWMutex

	// deviceId -> (connectionId -> userId)
	scannerConns map[string]map[string]uint

	// connectionId -> deviceId
	connScanner map[string]string
}

// NewPresenceTracker creates an empty PresenceTracker
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		scannerConns: make(map[string]map[string]uint),
		connScanner:  make(map[string]string),
	}
}

// Join registers a connection as watching deviceID on behalf of userID.
// If the connection previously watched a different device it is moved.
// Empty ids are ignored; this is driven by client-supplied data.
func (t *PresenceTracker) Join(deviceID, connectionID string, userID uint) {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(connectionID) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.connScanner[connectionID]; ok && !strings.EqualFold(prev, deviceID) {
		t.removeLocked(prev, connectionID)
	}

	conns, ok := t.scannerConns[deviceID]
	if !ok {
		conns = make(map[string]uint)
		t.scannerConns[deviceID] = conns
	}
	conns[connectionID] = userID
	t.connScanner[connectionID] = deviceID
}

// Leave removes the connection from whatever device group it belongs to.
// Safe to call repeatedly or for an unknown connection.
func (t *PresenceTracker) Leave(connectionID string) {
	if strings.TrimSpace(connectionID) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	deviceID, ok := t.connScanner[connectionID]
	if !ok {
		return
	}
	delete(t.connScanner, connectionID)
	t.removeLocked(deviceID, connectionID)
}

// IsActive reports whether at least one live connection for deviceID is
// attributed to userID
func (t *PresenceTracker) IsActive(deviceID string, userID uint) bool {
	if strings.TrimSpace(deviceID) == "" {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	conns, ok := t.scannerConns[deviceID]
	if !ok || len(conns) == 0 {
		return false
	}
	for _, activeUserID := range conns {
		if activeUserID == userID {
			return true
		}
	}
	return false
}

func (t *PresenceTracker) removeLocked(deviceID, connectionID string) {
	conns, ok := t.scannerConns[deviceID]
	if !ok {
		return
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(t.scannerConns, deviceID)
	}
}
