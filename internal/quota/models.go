package quota

import (
	"time"

	"gorm.io/datatypes"
)

// Counter tracks Woofs consumed by one brand within one billing period.
// Period is a year-month key; there is no rollover, a new period starts
// from zero.
type Counter struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	BrandID string `gorm:"type:varchar(36);not null;index:uniq_brand_period,unique,priority:1"`
	Period  string `gorm:"type:varchar(7);not null;index:uniq_brand_period,unique,priority:2"` // "2026-08"

	WoofsUsed int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Counter) TableName() string { return "quota_counters" }

// UsageEvent is the audit log of every successful consumption; rejected
// spends leave no row.
type UsageEvent struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID  uint64 `gorm:"index;not null"`
	BrandID string `gorm:"type:varchar(36);index;not null"`
	Period  string `gorm:"type:varchar(7);not null"`

	Reason   string         `gorm:"type:varchar(64);not null"` // e.g. render-image, render-carousel
	Cost     int            `gorm:"not null"`
	Metadata datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time
}

func (UsageEvent) TableName() string { return "quota_usage_events" }
