package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/session"
	"gorm.io/gorm"
)

type nopNotifier struct{}

func (nopNotifier) BroadcastToGroup(group, event string, payload interface{}) {}

type singleScanner struct {
	deviceID string
}

func (s singleScanner) ScannerByDeviceID(_ context.Context, deviceID string) (*models.Scanner, error) {
	if deviceID == s.deviceID {
		return &models.Scanner{ID: 1, DeviceID: deviceID}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestCommit_EmptyCart(t *testing.T) {
	coordinator := NewCoordinator(nil, session.NewCartStore(), singleScanner{"dev-1"}, nopNotifier{})

	if _, err := coordinator.Commit(context.Background(), 1, "dev-1", ""); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}
}

func TestCommit_UnknownDevice(t *testing.T) {
	// An empty id is just another unresolvable device: it must hit the same
	// precondition instead of slipping into the transaction with empty
	// attribution on the rows.
	for _, deviceID := range []string{"ghost-device", ""} {
		carts := session.NewCartStore()
		carts.AddEntry(1, session.CartEntry{ItemID: 10, Action: session.ActionBorrow})
		coordinator := NewCoordinator(nil, carts, singleScanner{"dev-1"}, nopNotifier{})

		_, err := coordinator.Commit(context.Background(), 1, deviceID, "")
		var unknownDevice *UnknownDeviceError
		if !errors.As(err, &unknownDevice) {
			t.Fatalf("Device %q: expected UnknownDeviceError, got %v", deviceID, err)
		}
		if unknownDevice.DeviceID != deviceID {
			t.Errorf("Expected the offending device id %q, got %q", deviceID, unknownDevice.DeviceID)
		}
		if carts.GetCart(1) == nil {
			t.Error("Failed commit must keep the cart intact")
		}
	}
}

func TestConflictError_Messages(t *testing.T) {
	cases := []struct {
		reason ConflictReason
		want   string
	}{
		{ItemNoLongerAvailable, "no longer available"},
		{NotYourItem, "not borrowed by you"},
		{ItemMissing, "no longer exists"},
	}
	for _, tc := range cases {
		err := &ConflictError{ItemID: 7, ItemName: "Torque Wrench", Reason: tc.reason}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: message %q should mention %q", tc.reason, err.Error(), tc.want)
		}
	}
}

func TestAsConflict_Unwraps(t *testing.T) {
	inner := &ConflictError{ItemID: 7, ItemName: "Torque Wrench", Reason: NotYourItem}
	wrapped := fmt.Errorf("commit failed: %w", inner)

	conflict, ok := AsConflict(wrapped)
	if !ok || conflict.ItemID != 7 {
		t.Fatalf("Expected to unwrap conflict, got %v (ok=%v)", conflict, ok)
	}

	if _, ok := AsConflict(errors.New("plain")); ok {
		t.Error("Plain error must not unwrap as conflict")
	}
}
