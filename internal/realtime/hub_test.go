package realtime

import (
	"encoding/json"
	"testing"

	"github.com/warekiosk/kioskgo/internal/session"
)

func newTestClient(id string, userID uint) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		send:   make(chan []byte, 16),
		groups: make(map[string]bool),
	}
}

func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case msg := <-c.send:
			var env Envelope
			if err := json.Unmarshal(msg, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestHub_BroadcastReachesOnlyGroupMembers(t *testing.T) {
	hub := NewHub(session.NewPresenceTracker())

	watching := newTestClient("conn-a", 1)
	other := newTestClient("conn-b", 2)
	hub.addClient(watching)
	hub.addClient(other)
	hub.JoinScannerGroup(watching, "dev-1")

	hub.BroadcastToGroup(ScannerGroup("dev-1"), EventCartUpdated, map[string]int{"itemId": 10})

	got := drain(watching)
	if len(got) != 1 || got[0].Event != EventCartUpdated {
		t.Fatalf("Expected one CartUpdated for watcher, got %+v", got)
	}
	if msgs := drain(other); len(msgs) != 0 {
		t.Errorf("Client outside the group received %d messages", len(msgs))
	}
}

func TestHub_UserGroupAutoJoin(t *testing.T) {
	hub := NewHub(session.NewPresenceTracker())

	client := newTestClient("conn-a", 42)
	hub.addClient(client)

	hub.BroadcastToGroup(UserGroup(42), EventCartUpdated, nil)
	if got := drain(client); len(got) != 1 {
		t.Fatalf("Authenticated client should auto-join its user group, got %d messages", len(got))
	}
}

func TestHub_JoinFeedsPresence(t *testing.T) {
	presence := session.NewPresenceTracker()
	hub := NewHub(presence)

	kiosk := newTestClient("conn-a", 7)
	hub.addClient(kiosk)
	hub.JoinScannerGroup(kiosk, "dev-1")

	if !presence.IsActive("dev-1", 7) {
		t.Error("Joining a scanner group should mark the user present")
	}

	hub.removeClient(kiosk)
	if presence.IsActive("dev-1", 7) {
		t.Error("Disconnect should clear presence")
	}
}

func TestHub_LoginWatcherNeverPresent(t *testing.T) {
	presence := session.NewPresenceTracker()
	hub := NewHub(presence)

	watcher := newTestClient("conn-login", 0)
	hub.addClient(watcher)
	hub.JoinScannerGroup(watcher, "dev-1")

	// The unauthenticated login socket still gets broadcasts...
	hub.BroadcastToGroup(ScannerGroup("dev-1"), EventLoginFailed, nil)
	if got := drain(watcher); len(got) != 1 {
		t.Fatalf("Login watcher should receive scanner-group events, got %d", len(got))
	}

	// ...but never satisfies presence for any user.
	if presence.IsActive("dev-1", 0) {
		t.Error("Anonymous connection must not register presence")
	}
}
