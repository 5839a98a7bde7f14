package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/realtime"
	"github.com/warekiosk/kioskgo/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier pushes events to subscribed realtime clients
type Notifier interface {
	BroadcastToGroup(group, event string, payload interface{})
}

// ScannerLookup resolves scanners by exact device id
type ScannerLookup interface {
	ScannerByDeviceID(ctx context.Context, deviceID string) (*models.Scanner, error)
}

// Receipt summarizes one successful commit
type Receipt struct {
	Borrowed    int       `json:"borrowed"`
	Returned    int       `json:"returned"`
	CommittedAt time.Time `json:"committedAt"`
}

// Coordinator turns a user's pending cart into inventory state, atomically.
// Every entry is re-validated against the live item row inside one database
// transaction; any conflict rolls the whole commit back and keeps the cart
// intact so the user can remove the offending item and retry.
type Coordinator struct {
	db       *database.DB
	carts    *session.CartStore
	scanners ScannerLookup
	notifier Notifier
}

// NewCoordinator wires a commit coordinator
func NewCoordinator(db *database.DB, carts *session.CartStore, scanners ScannerLookup, notifier Notifier) *Coordinator {
	return &Coordinator{db: db, carts: carts, scanners: scanners, notifier: notifier}
}

// Commit applies every pending entry of the user's cart. deviceID is the
// kiosk the user confirmed at and is recorded on the transaction rows; it
// must name a registered scanner but is otherwise taken on trust.
// TODO: decide whether commit should also cross-check the device id against
// the user's active scanner binding.
func (c *Coordinator) Commit(ctx context.Context, userID uint, deviceID, notes string) (*Receipt, error) {
	cart := c.carts.GetCart(userID)
	if cart == nil || len(cart.Entries) == 0 {
		return nil, ErrEmptyCart
	}

	if _, err := c.scanners.ScannerByDeviceID(ctx, deviceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnknownDeviceError{DeviceID: deviceID}
		}
		return nil, fmt.Errorf("failed to verify scanner %q: %w", deviceID, err)
	}

	now := time.Now().UTC()
	receipt := &Receipt{CommittedAt: now}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range cart.Entries {
			if err := c.applyEntry(tx, userID, deviceID, notes, entry, now, receipt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if conflict, ok := AsConflict(err); ok {
			log.Printf("⚠️  Commit for user %d aborted: %v", userID, conflict)
			return nil, err
		}
		return nil, fmt.Errorf("failed to commit cart for user %d: %w", userID, err)
	}

	c.carts.Clear(userID)

	// The kiosk and any other open session views repaint to an empty cart
	empty := session.Cart{UserID: userID, StartedAt: now, Entries: []session.CartEntry{}}
	c.notifier.BroadcastToGroup(realtime.ScannerGroup(deviceID), realtime.EventCartUpdated, empty)
	c.notifier.BroadcastToGroup(realtime.UserGroup(userID), realtime.EventCartUpdated, empty)

	log.Printf("✅ Commit for user %d: %d borrowed, %d returned", userID, receipt.Borrowed, receipt.Returned)
	return receipt, nil
}

// applyEntry re-validates one pending entry against the live item row and
// writes the status flip plus its transaction record. Runs inside the
// enclosing commit transaction.
func (c *Coordinator) applyEntry(tx *gorm.DB, userID uint, deviceID, notes string, entry session.CartEntry, now time.Time, receipt *Receipt) error {
	// Lock the row so two concurrent commits of the same item cannot both
	// pass validation and overwrite each other's holder
	var item models.Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, entry.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ConflictError{ItemID: entry.ItemID, ItemName: entry.ItemName, Reason: ItemMissing}
		}
		return err
	}

	var action models.TransactionAction
	var updates map[string]interface{}

	switch entry.Action {
	case session.ActionBorrow:
		// The item may have been taken by someone else since the scan
		if item.Status != models.ItemStatusAvailable {
			return &ConflictError{ItemID: item.ID, ItemName: item.ItemName, Reason: ItemNoLongerAvailable}
		}
		action = models.ActionCheckout
		updates = map[string]interface{}{
			"status":            models.ItemStatusBorrowed,
			"current_holder_id": userID,
			"last_updated":      now,
		}
		receipt.Borrowed++

	case session.ActionReturn:
		if item.Status != models.ItemStatusBorrowed || item.CurrentHolderID == nil || *item.CurrentHolderID != userID {
			return &ConflictError{ItemID: item.ID, ItemName: item.ItemName, Reason: NotYourItem}
		}
		action = models.ActionCheckin
		updates = map[string]interface{}{
			"status":                 models.ItemStatusAvailable,
			"current_holder_id":      nil,
			"reminder_email_sent":    false,
			"reminder_email_sent_at": nil,
			"last_updated":           now,
		}
		receipt.Returned++

	default:
		return fmt.Errorf("unknown cart action %q for item %d", entry.Action, entry.ItemID)
	}

	if err := tx.Model(&item).Updates(updates).Error; err != nil {
		return err
	}

	record := models.Transaction{
		UserID:    userID,
		ItemID:    item.ID,
		DeviceID:  deviceID,
		Action:    action,
		Timestamp: now,
		Notes:     notes,
	}
	return tx.Create(&record).Error
}
