package library

import (
	"time"

	"gorm.io/datatypes"
)

type AssetType string

const (
	AssetImage         AssetType = "image"
	AssetCarouselSlide AssetType = "carousel_slide"
	AssetVideo         AssetType = "video"
)

// Asset is one rendered media entry in the user's library. ExternalID is
// the render backend's stable identifier; at most one row exists per
// external id, which is what makes webhook redelivery idempotent.
type Asset struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID  uint64 `gorm:"index;not null" json:"-"`
	BrandID string `gorm:"type:varchar(36);index;not null" json:"brand_id"`

	OrderID string `gorm:"type:varchar(36);index" json:"order_id,omitempty"`
	JobID   string `gorm:"type:varchar(26);index" json:"job_id,omitempty"`

	Type AssetType `gorm:"type:varchar(24);not null" json:"type"`

	URL        string  `gorm:"type:varchar(1024);not null" json:"url"`
	ExternalID *string `gorm:"type:varchar(191);uniqueIndex" json:"external_id,omitempty"`

	Metadata datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Asset) TableName() string { return "library_assets" }
