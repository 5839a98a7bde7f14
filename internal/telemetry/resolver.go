package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/realtime"
	"github.com/warekiosk/kioskgo/internal/session"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stage is how far an event made it through the resolution pipeline
type Stage string

const (
	StageReceived   Stage = "received"
	StageValidated  Stage = "validated"
	StageClassified Stage = "classified"
	StageResolved   Stage = "resolved"
	StageApplied    Stage = "applied"
)

// RejectReason is the terminal failure classification for a dropped event.
// Rejected events are logged and dropped; a missed scan is corrected by the
// next physical tap, so there is no retry or dead-lettering.
type RejectReason string

const (
	RejectBadPayload      RejectReason = "bad_payload"
	RejectMissingDevice   RejectReason = "missing_device"
	RejectMissingTag      RejectReason = "missing_tag"
	RejectUnknownItem     RejectReason = "unknown_item"
	RejectUnknownDevice   RejectReason = "unknown_device"
	RejectNoActiveUser    RejectReason = "no_active_user"
	RejectStaleBinding    RejectReason = "stale_binding"
	RejectInvalidState    RejectReason = "invalid_state"
	RejectDuplicate       RejectReason = "duplicate"
	RejectUnknownLoginTag RejectReason = "unknown_login_tag"
	RejectLookupFailed    RejectReason = "lookup_failed"
)

// Outcome records the final state one event reached
type Outcome struct {
	Stage  Stage
	Kind   string // "login" or "item"
	Reason RejectReason
	UserID uint
	ItemID uint
}

// Rejected reports whether the event was dropped
func (o Outcome) Rejected() bool {
	return o.Reason != ""
}

// InventoryLookup resolves items by tag UID
type InventoryLookup interface {
	ItemByTagUID(ctx context.Context, tagUID string) (*models.Item, error)
}

// ScannerLookup resolves scanners by exact device id
type ScannerLookup interface {
	ScannerByDeviceID(ctx context.Context, deviceID string) (*models.Scanner, error)
}

// UserLookup resolves users by login-card tag UID (bare or legacy-prefixed)
type UserLookup interface {
	UserByLoginTag(ctx context.Context, tagUID, legacyPrefixed string) (*models.User, error)
}

// Notifier pushes events to subscribed realtime clients
type Notifier interface {
	BroadcastToGroup(group, event string, payload interface{})
}

// TokenIssuer mints credentials for RFID logins
type TokenIssuer interface {
	IssueSession(user *models.User) (string, error)
	IssueStepUp(user *models.User, deviceID string) (string, error)
}

// EventLog appends scan events to the audit trail
type EventLog interface {
	LogScanEvent(ctx context.Context, event *models.ScanEvent) error
}

// Resolver drives each raw device event through
// Received -> Validated -> Classified -> Resolved -> Applied,
// mutating the pending cart and notifying subscribers. Failures never
// propagate past Process: one bad event must not halt the stream.
type Resolver struct {
	inventory InventoryLookup
	scanners  ScannerLookup
	users     UserLookup
	bindings  *session.BindingRegistry
	presence  *session.PresenceTracker
	carts     *session.CartStore
	notifier  Notifier
	tokens    TokenIssuer
	events    EventLog // optional
}

// NewResolver wires a resolver from its collaborators. events may be nil to
// disable the audit log.
func NewResolver(
	inventory InventoryLookup,
	scanners ScannerLookup,
	users UserLookup,
	bindings *session.BindingRegistry,
	presence *session.PresenceTracker,
	carts *session.CartStore,
	notifier Notifier,
	tokens TokenIssuer,
	events EventLog,
) *Resolver {
	return &Resolver{
		inventory: inventory,
		scanners:  scanners,
		users:     users,
		bindings:  bindings,
		presence:  presence,
		carts:     carts,
		notifier:  notifier,
		tokens:    tokens,
		events:    events,
	}
}

// Process resolves one raw delivery and returns how far it got
func (r *Resolver) Process(ctx context.Context, d Delivery) Outcome {
	outcome := r.process(ctx, d)
	r.logEvent(ctx, d, outcome)
	return outcome
}

func (r *Resolver) process(ctx context.Context, d Delivery) Outcome {
	var msg ScanMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("Scan event with unparseable body: %v", err)
		return Outcome{Stage: StageReceived, Reason: RejectBadPayload}
	}

	// The device identity used downstream must come from the transport's
	// authenticated metadata where available. A compromised payload must not
	// be able to impersonate another scanner.
	deviceID := d.HeaderDeviceID
	if deviceID == "" {
		if msg.DeviceID == "" {
			log.Printf("Scan event with no device identity, dropping")
			return Outcome{Stage: StageReceived, Reason: RejectMissingDevice}
		}
		deviceID = msg.DeviceID
		log.Printf("⚠️  No transport device id on scan event, falling back to body field %q", deviceID)
	}

	tag := strings.TrimSpace(msg.RfidUid)
	if tag == "" {
		log.Printf("Scan event from %s with no tag value, dropping", deviceID)
		return Outcome{Stage: StageValidated, Reason: RejectMissingTag}
	}

	if len(tag) >= len(LoginPrefix) && strings.EqualFold(tag[:len(LoginPrefix)], LoginPrefix) {
		return r.resolveLogin(ctx, deviceID, tag)
	}
	return r.resolveItemScan(ctx, deviceID, tag, msg.Timestamp)
}

// resolveLogin handles an identity-card read: look the user up by tag UID,
// issue a step-up credential when a PIN is configured (full session token
// otherwise), bind the user to the scanner, and tell the kiosk.
func (r *Resolver) resolveLogin(ctx context.Context, deviceID, tag string) Outcome {
	out := Outcome{Stage: StageClassified, Kind: "login"}

	uid := strings.TrimSpace(tag[len(LoginPrefix):])
	if uid == "" {
		log.Printf("Login scan from %s with empty tag UID", deviceID)
		out.Reason = RejectMissingTag
		return out
	}

	user, err := r.users.UserByLoginTag(ctx, uid, LoginPrefix+uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Login scan with unknown tag %s at %s", uid, deviceID)
			r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventLoginFailed,
				map[string]string{"reason": "No user found for this RFID card"})
			out.Reason = RejectUnknownLoginTag
			return out
		}
		log.Printf("Login scan user lookup failed: %v", err)
		out.Reason = RejectLookupFailed
		return out
	}
	out.Stage = StageResolved
	out.UserID = user.ID

	payload := map[string]interface{}{
		"userId":   user.ID,
		"email":    user.Email,
		"name":     user.Name,
		"lastname": user.Lastname,
	}

	// Issue the credential before touching the binding: a failed issuance
	// must not leave the kiosk occupied with no event telling anyone why.
	if user.PinRequired() {
		token, err := r.tokens.IssueStepUp(user, deviceID)
		if err != nil {
			log.Printf("Failed to issue step-up token for user %d: %v", user.ID, err)
			r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventLoginFailed,
				map[string]string{"reason": "Login failed, please try again"})
			out.Reason = RejectLookupFailed
			return out
		}
		payload["pinRequired"] = true
		payload["mfaToken"] = token
	} else {
		token, err := r.tokens.IssueSession(user)
		if err != nil {
			log.Printf("Failed to issue session token for user %d: %v", user.ID, err)
			r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventLoginFailed,
				map[string]string{"reason": "Login failed, please try again"})
			out.Reason = RejectLookupFailed
			return out
		}
		payload["pinRequired"] = false
		payload["token"] = token
	}

	if _, _, err := r.bindings.Bind(ctx, user.ID, deviceID); err != nil {
		log.Printf("Login scan from unregistered device %s", deviceID)
		r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventLoginFailed,
			map[string]string{"reason": "Scanner is not registered"})
		out.Reason = RejectUnknownDevice
		return out
	}

	r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventRfidLoginSuccess, payload)
	log.Printf("RFID login successful for user %s (UserId=%d) at %s", user.Email, user.ID, deviceID)

	out.Stage = StageApplied
	return out
}

// resolveItemScan handles an inventory-tag read: find who is at the kiosk,
// classify the implied action from the item's current status, and accumulate
// it into the pending cart. Inventory is only read here; the write happens
// at commit time so concurrent scans never contend on item rows.
func (r *Resolver) resolveItemScan(ctx context.Context, deviceID, tag string, scannedAt time.Time) Outcome {
	out := Outcome{Stage: StageClassified, Kind: "item"}

	item, err := r.inventory.ItemByTagUID(ctx, tag)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Unknown RFID scanned: %s", tag)
			out.Reason = RejectUnknownItem
		} else {
			log.Printf("Item lookup failed for tag %s: %v", tag, err)
			out.Reason = RejectLookupFailed
		}
		return out
	}
	out.ItemID = item.ID

	if _, err := r.scanners.ScannerByDeviceID(ctx, deviceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Unknown scanner device: %s", deviceID)
			out.Reason = RejectUnknownDevice
		} else {
			log.Printf("Scanner lookup failed for %s: %v", deviceID, err)
			out.Reason = RejectLookupFailed
		}
		return out
	}

	userID, ok := r.bindings.ActiveUserFor(deviceID)
	if !ok {
		// Scan arrived with nobody logged in at that kiosk
		log.Printf("Item %s scanned at %s with no active user, dropping", item.ItemName, deviceID)
		out.Reason = RejectNoActiveUser
		return out
	}
	out.UserID = userID

	// A stale binding with no live kiosk UI must not silently accumulate
	// cart state the user will never see.
	if !r.presence.IsActive(deviceID, userID) {
		log.Printf("User %d bound to %s but not present, dropping scan of %s", userID, deviceID, item.ItemName)
		out.Reason = RejectStaleBinding
		return out
	}

	var action session.CartAction
	switch item.Status {
	case models.ItemStatusAvailable:
		action = session.ActionBorrow
	case models.ItemStatusBorrowed:
		action = session.ActionReturn
	default:
		log.Printf("Item %s is in invalid state: %s", item.ItemName, item.Status)
		out.Reason = RejectInvalidState
		return out
	}
	out.Stage = StageResolved

	// Duplicate physical tap: silent no-op, not an error
	if r.carts.Contains(userID, item.ID) {
		out.Reason = RejectDuplicate
		return out
	}

	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}
	entry := session.CartEntry{
		ItemID:    item.ID,
		RfidUid:   item.RfidUid,
		ItemName:  item.ItemName,
		Action:    action,
		ScannedAt: scannedAt,
	}
	if !r.carts.AddEntry(userID, entry) {
		// Lost the race against a concurrent identical scan
		out.Reason = RejectDuplicate
		return out
	}

	r.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventCartUpdated, entry)
	r.notifier.BroadcastToGroup(realtime.UserGroup(userID), realtime.EventCartUpdated, entry)
	log.Printf("Item %s added to cart for user %d. Action: %s, Device: %s", item.ItemName, userID, action, deviceID)

	out.Stage = StageApplied
	return out
}

func (r *Resolver) logEvent(ctx context.Context, d Delivery, out Outcome) {
	if r.events == nil {
		return
	}

	var msg ScanMessage
	_ = json.Unmarshal(d.Body, &msg)
	deviceID := d.HeaderDeviceID
	if deviceID == "" {
		deviceID = msg.DeviceID
	}

	event := &models.ScanEvent{
		DeviceID:   deviceID,
		RfidUid:    strings.TrimSpace(msg.RfidUid),
		Kind:       out.Kind,
		Accepted:   !out.Rejected(),
		Reason:     string(out.Reason),
		Payload:    datatypes.JSON(d.Body),
		ReceivedAt: time.Now().UTC(),
	}
	if err := r.events.LogScanEvent(ctx, event); err != nil {
		log.Printf("Failed to write scan event audit row: %v", err)
	}
}
