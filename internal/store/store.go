package store

import (
	"context"
	"strings"

	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/models"
)

// Store is the database-backed implementation of the lookup interfaces the
// session registry and the scan resolver depend on.
type Store struct {
	db *database.DB
}

// New creates a Store on top of the shared database handle
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// ScannerByNameOrDeviceID resolves a human-entered scanner name (typical) or
// a raw device id (useful for ops/testing), case-insensitive exact match.
func (s *Store) ScannerByNameOrDeviceID(ctx context.Context, nameOrID string) (*models.Scanner, error) {
	normalized := strings.ToLower(strings.TrimSpace(nameOrID))

	var scanner models.Scanner
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = ? OR LOWER(device_id) = ?", normalized, normalized).
		First(&scanner).Error
	if err != nil {
		return nil, err
	}
	return &scanner, nil
}

// ScannerByDeviceID resolves a scanner by its exact device id
func (s *Store) ScannerByDeviceID(ctx context.Context, deviceID string) (*models.Scanner, error) {
	var scanner models.Scanner
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&scanner).Error
	if err != nil {
		return nil, err
	}
	return &scanner, nil
}

// ItemByTagUID resolves an inventory item by the UID on its RFID tag
func (s *Store) ItemByTagUID(ctx context.Context, tagUID string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("rfid_uid = ?", tagUID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UserByLoginTag resolves a user by login-card tag UID. Accepts either the
// bare UID (preferred) or a legacy value stored with the login prefix.
func (s *Store) UserByLoginTag(ctx context.Context, tagUID, legacyPrefixed string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("rfid_tag_uid = ? OR rfid_tag_uid = ?", tagUID, legacyPrefixed).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LogScanEvent appends one row to the scan-event audit log
func (s *Store) LogScanEvent(ctx context.Context, event *models.ScanEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}
