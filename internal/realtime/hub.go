package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event names pushed to subscribed clients
const (
	EventCartUpdated      = "CartUpdated"
	EventRfidLoginSuccess = "RfidLoginSuccess"
	EventLoginFailed      = "LoginFailed"
	EventPong             = "Pong"
)

// UserGroup is the group key for one user's personal updates
func UserGroup(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// ScannerGroup is the group key for clients watching one physical scanner
func ScannerGroup(deviceID string) string {
	return "scanner:" + deviceID
}

// PresenceSink receives join/leave notifications for authenticated kiosk
// connections subscribing to scanner groups
type PresenceSink interface {
	Join(deviceID, connectionID string, userID uint)
	Leave(connectionID string)
}

// Envelope is the wire format for every pushed event
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and their group subscriptions
type Hub struct {
	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	presence PresenceSink

	// Mutex for thread-safe access to clients and groups
	mu      sync.RWMutex
	clients map[string]*Client          // connectionId -> client
	groups  map[string]map[*Client]bool // groupKey -> members
}

// NewHub creates a new Hub instance
func NewHub(presence PresenceSink) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   presence,
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if client.UserID != 0 {
		// Authenticated clients always receive their personal events
		h.joinLocked(client, UserGroup(client.UserID))
		log.Printf("📱 User %d connected: %s", client.UserID, client.ID)
	} else {
		log.Printf("📱 Login watcher connected: %s", client.ID)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	for group := range client.groups {
		h.leaveLocked(client, group)
	}
	close(client.send)
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.Leave(client.ID)
	}
	log.Printf("📴 Client disconnected: %s", client.ID)
}

// JoinScannerGroup subscribes a client to a scanner's update group. For
// authenticated clients this also marks the user as present at that kiosk,
// which is what allows the resolver to accept scans for them.
func (h *Hub) JoinScannerGroup(client *Client, deviceID string) {
	if deviceID == "" {
		return
	}

	h.mu.Lock()
	h.joinLocked(client, ScannerGroup(deviceID))
	h.mu.Unlock()

	if client.UserID != 0 && h.presence != nil {
		h.presence.Join(deviceID, client.ID, client.UserID)
	}
	log.Printf("Client %s joined scanner group %s (user %d)", client.ID, deviceID, client.UserID)
}

func (h *Hub) joinLocked(client *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]bool)
		h.groups[group] = members
	}
	members[client] = true
	client.groups[group] = true
}

func (h *Hub) leaveLocked(client *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)
}

// BroadcastToGroup pushes an event to every client subscribed to the group.
// Slow or dead clients are skipped rather than blocking the caller.
func (h *Hub) BroadcastToGroup(group, event string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		select {
		case client.send <- msg:
		default:
			// Buffer full or client dead
		}
	}
}
