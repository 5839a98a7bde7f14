package models

import (
	"time"
)

// Scanner represents a physical RFID kiosk scanner registered with the
// event stream. DeviceID matches the identity the device authenticates
// with on the telemetry broker.
type Scanner struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"unique;not null" json:"deviceId"`
	Name     string `json:"name"`
	Status   string `gorm:"type:varchar(50);default:'active'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Scanner model
func (Scanner) TableName() string {
	return "scanners"
}
