package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/warekiosk/kioskgo/internal/models"
)

// ErrScannerNotFound is returned when no scanner matches the given name or
// device id (case-insensitive exact match only)
var ErrScannerNotFound = errors.New("scanner not found")

// ScannerLookup resolves human-entered scanner names or raw device ids
// against the scanner registry
type ScannerLookup interface {
	ScannerByNameOrDeviceID(ctx context.Context, nameOrID string) (*models.Scanner, error)
}

// BindingRegistry records which user currently occupies which physical
// scanner. Bindings are process-local and lost on restart; re-binding is
// part of the login flow.
type BindingRegistry struct {
	scanners ScannerLookup

	mu     sync.RWMutex
	active map[string]uint // deviceId -> userId
}

// NewBindingRegistry creates a registry backed by the given scanner lookup
func NewBindingRegistry(scanners ScannerLookup) *BindingRegistry {
	return &BindingRegistry{
		scanners: scanners,
		active:   make(map[string]uint),
	}
}

// Bind resolves nameOrDeviceID to a scanner and records that userID now
// occupies that device. An existing binding for the device is overwritten
// without warning: physical re-badging at a kiosk always wins.
func (r *BindingRegistry) Bind(ctx context.Context, userID uint, nameOrDeviceID string) (deviceID, displayName string, err error) {
	scanner, err := r.scanners.ScannerByNameOrDeviceID(ctx, nameOrDeviceID)
	if err != nil {
		log.Printf("Bind: scanner not found for %q", nameOrDeviceID)
		return "", "", ErrScannerNotFound
	}

	r.mu.Lock()
	r.active[scanner.DeviceID] = userID
	r.mu.Unlock()

	name := scanner.Name
	if name == "" {
		name = nameOrDeviceID
	}
	log.Printf("Scanner %s (%s) bound to user %d", scanner.DeviceID, name, userID)
	return scanner.DeviceID, name, nil
}

// ActiveUserFor returns the user currently bound to deviceID, if any
func (r *BindingRegistry) ActiveUserFor(deviceID string) (uint, bool) {
	if deviceID == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.active[deviceID]
	return userID, ok
}

// Unbind drops the binding for deviceID if it belongs to userID.
// Used on logout so a stale binding cannot outlive the session.
func (r *BindingRegistry) Unbind(deviceID string, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bound, ok := r.active[deviceID]; ok && bound == userID {
		delete(r.active, deviceID)
	}
}
