package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a warehouse user who can authenticate by password,
// RFID login card, or RFID card plus PIN step-up.
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type User struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Email        string  `gorm:"unique;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Name         string  `gorm:"not null" json:"name"`
	Lastname     string  `gorm:"not null" json:"lastname"`
	RfidTagUid   *string `gorm:"uniqueIndex" json:"rfidTagUid,omitempty"`
	IsAdmin      bool    `gorm:"default:false" json:"isAdmin"`

	// PIN step-up (second factor after an RFID tap). Nil PinHash = no PIN set.
	PinHash           *string    `json:"-"`
	PinFailedAttempts int        `gorm:"default:0" json:"-"`
	PinLockoutUntil   *time.Time `json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// PinRequired reports whether this user must complete the PIN step
// before receiving a full session credential.
func (u *User) PinRequired() bool {
	return u.PinHash != nil && *u.PinHash != ""
}
