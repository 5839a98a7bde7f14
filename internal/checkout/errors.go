package checkout

import (
	"errors"
	"fmt"
)

// ErrEmptyCart is returned when a commit is requested with nothing pending
var ErrEmptyCart = errors.New("no pending items to commit")

// UnknownDeviceError rejects a commit naming a device id that is not a
// registered scanner
type UnknownDeviceError struct {
	DeviceID string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown scanner device %q", e.DeviceID)
}

// ConflictReason says why a pending entry no longer matches reality
type ConflictReason string

const (
	// ItemNoLongerAvailable: someone else borrowed it between scan and commit
	ItemNoLongerAvailable ConflictReason = "item_no_longer_available"
	// NotYourItem: a pending return, but the item is not held by this user
	NotYourItem ConflictReason = "not_your_item"
	// ItemMissing: the item row disappeared between scan and commit
	ItemMissing ConflictReason = "item_missing"
)

// ConflictError aborts a commit whose pending entries no longer reflect the
// current inventory state. The whole cart is preserved so the user can fix it.
type ConflictError struct {
	ItemID   uint
	ItemName string
	Reason   ConflictReason
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ItemNoLongerAvailable:
		return fmt.Sprintf("item %q is no longer available", e.ItemName)
	case NotYourItem:
		return fmt.Sprintf("item %q is not borrowed by you", e.ItemName)
	case ItemMissing:
		return fmt.Sprintf("item %d no longer exists", e.ItemID)
	default:
		return fmt.Sprintf("item %q conflicts with current inventory state", e.ItemName)
	}
}

// AsConflict unwraps a ConflictError if err carries one
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
