package models

import (
	"time"
)

// TransactionAction is the durable record of what a committed cart entry did
type TransactionAction string

const (
	ActionCheckout TransactionAction = "Checkout"
	ActionCheckin  TransactionAction = "Checkin"
)

// Transaction is an append-only record of one committed borrow or return.
// Rows are never updated after creation.
type Transaction struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	UserID   uint              `gorm:"not null;index" json:"userId"`
	ItemID   uint              `gorm:"not null;index" json:"itemId"`
	DeviceID string            `gorm:"not null" json:"deviceId"`
	Action   TransactionAction `gorm:"type:varchar(20);not null" json:"action"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
