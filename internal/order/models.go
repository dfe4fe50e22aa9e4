package order

import (
	"time"

	"gorm.io/datatypes"

	"github.com/alfielabs/alfie-backend/internal/conversation"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
)

// Order is one confirmed conversation, created exactly once per session
// (the session's order link enforces it).
type Order struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint64 `gorm:"index;not null" json:"-"`
	BrandID   string `gorm:"type:varchar(36);index;not null" json:"brand_id"`
	SessionID string `gorm:"type:varchar(26);index;not null" json:"session_id"`

	Campaign string `gorm:"type:varchar(128)" json:"campaign"`
	// the brief that produced this order, frozen at confirmation
	Context datatypes.JSON `gorm:"type:json" json:"context"`
	Status  Status         `gorm:"type:varchar(16);not null;default:pending" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

type ItemType string

const (
	ItemImage    ItemType = "image"
	ItemCarousel ItemType = "carousel"
)

// OrderItem batches every unit of one content type: at most one image row
// and one carousel row per order.
type OrderItem struct {
	ID      string   `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID string   `gorm:"type:varchar(36);not null;index:uniq_order_item_type,unique,priority:1" json:"order_id"`
	Type    ItemType `gorm:"type:varchar(16);not null;index:uniq_order_item_type,unique,priority:2" json:"type"`

	Count  int            `gorm:"not null" json:"count"`
	Briefs datatypes.JSON `gorm:"type:json" json:"briefs"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

type JobType string

const (
	JobRenderImage    JobType = "render-image"
	JobRenderCarousel JobType = "render-carousel"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of generation. The (order, type, unit) unique index is
// what makes rebuilding jobs for an order idempotent.
type Job struct {
	ID string `gorm:"type:varchar(26);primaryKey" json:"id"` // ULID

	UserID      uint64  `gorm:"index;not null" json:"-"`
	OrderID     string  `gorm:"type:varchar(36);not null;index:uniq_order_type_unit,unique,priority:1" json:"order_id"`
	OrderItemID string  `gorm:"type:varchar(36);not null;index" json:"order_item_id"`
	Type        JobType `gorm:"type:varchar(24);not null;index:uniq_order_type_unit,unique,priority:2" json:"type"`
	UnitIndex   int     `gorm:"not null;index:uniq_order_type_unit,unique,priority:3" json:"unit_index"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// render backend correlation id, recorded at submission so webhook
	// notifications can find their way back
	ExecutionID *string `gorm:"type:varchar(191);index" json:"execution_id,omitempty"`

	// self-contained generation instructions (see Payload)
	Payload datatypes.JSON `gorm:"type:json" json:"payload"`
	Result  datatypes.JSON `gorm:"type:json" json:"result,omitempty"`
	Error   *string        `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "order_jobs" }

// Payload carries everything a render worker or the webhook reconciler
// needs, with no join back to the order at render time.
type Payload struct {
	UserID      uint64 `json:"user_id"`
	BrandID     string `json:"brand_id"`
	OrderID     string `json:"order_id"`
	OrderItemID string `json:"order_item_id"`
	UnitIndex   int    `json:"unit_index"`

	ImageBrief    *conversation.ImageBrief    `json:"image_brief,omitempty"`
	CarouselBrief *conversation.CarouselBrief `json:"carousel_brief,omitempty"`
}
