package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScanEvent is an append-only audit row for every telemetry message the
// resolver received, including rejected ones. Payload keeps the raw message
// body for troubleshooting device firmware.
type ScanEvent struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"index" json:"deviceId"`
	RfidUid  string `json:"rfidUid"`
	Kind     string `gorm:"type:varchar(20)" json:"kind"` // login, item
	Accepted bool   `json:"accepted"`
	Reason   string `gorm:"type:varchar(50)" json:"reason,omitempty"`

	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	ReceivedAt time.Time      `gorm:"index" json:"receivedAt"`
}

// TableName specifies the table name for ScanEvent model
func (ScanEvent) TableName() string {
	return "scan_events"
}
