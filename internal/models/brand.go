package models

import (
	"time"

	"gorm.io/datatypes"
)

// Brand is the unit of quota accounting: each brand has its own monthly
// Woofs allowance and its own visual/tonal identity (the brand kit) that
// seeds carousel generation.
type Brand struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID uint64 `gorm:"index;not null" json:"-"`

	Name       string `gorm:"type:varchar(128);not null" json:"name"`
	WoofsLimit int    `gorm:"not null;default:150" json:"woofs_limit"`

	// brand kit: tone, palette, audience overrides merged into carousel
	// plan globals
	Kit datatypes.JSON `gorm:"type:json" json:"kit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Brand) TableName() string { return "brands" }
