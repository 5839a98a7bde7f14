package models

import (
	"time"
)

// ItemStatus defines the lending state of an item
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "Available"
	ItemStatusBorrowed  ItemStatus = "Borrowed"
)

// Item represents a tagged inventory item. Status and CurrentHolderID are
// only ever mutated inside a commit transaction (see internal/checkout).
type Item struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RfidUid         string     `gorm:"unique;not null" json:"rfidUid"`
	ItemName        string     `gorm:"not null" json:"itemName"`
	Status          ItemStatus `gorm:"type:varchar(50);default:'Available'" json:"status"`
	CurrentHolderID *uint      `gorm:"index" json:"currentHolderId,omitempty"`

	// Overdue reminder bookkeeping; reset when the item is returned so the
	// next holder cycle can be reminded again.
	ReminderEmailSent   bool       `gorm:"default:false" json:"reminderEmailSent"`
	ReminderEmailSentAt *time.Time `json:"reminderEmailSentAt,omitempty"`

	LastUpdated time.Time `json:"lastUpdated"`

	// Relations
	CurrentHolder *User `gorm:"foreignKey:CurrentHolderID" json:"currentHolder,omitempty"`
}

// TableName specifies the table name for Item model
func (Item) TableName() string {
	return "items"
}
