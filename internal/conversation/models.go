package conversation

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type State string

const (
	StateInitial            State = "initial"
	StateCollectingImage    State = "collecting_image_brief"
	StateCollectingCarousel State = "collecting_carousel_brief"
	StateConfirming         State = "confirming"
	// StateGenerating is terminal: once an order is linked the session
	// only echoes status.
	StateGenerating State = "generating"
)

// Session is the persisted conversation record. All cross-turn state
// lives in Context; every turn replaces the row, never mutates shared
// memory.
type Session struct {
	ID      string `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID  uint64 `gorm:"index;not null" json:"-"`
	BrandID string `gorm:"type:varchar(36);index;not null" json:"brand_id"`

	State   State          `gorm:"type:varchar(32);not null;default:initial" json:"state"`
	Context datatypes.JSON `gorm:"type:json" json:"context"`

	// set exactly once, when the order is materialized
	OrderID *string `gorm:"type:varchar(36);index" json:"order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "conv_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);not null;index" json:"session_id"`
	UserID    uint64    `gorm:"not null;index" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "conv_messages" }

// ImageBrief is the per-image answer set. Objective is the only required
// field; the rest default downstream when skipped.
type ImageBrief struct {
	Objective string   `json:"objective"`
	Format    string   `json:"format"`
	Style     string   `json:"style"`
	Done      []string `json:"done,omitempty"` // fields already asked and resolved
}

// CarouselBrief is the per-carousel answer set. Subject is required and
// passes the topic-quality gate before being accepted.
type CarouselBrief struct {
	Subject    string   `json:"subject"`
	SlideCount int      `json:"slideCount"`
	Tone       string   `json:"tone"`
	Done       []string `json:"done,omitempty"`
}

// Context is the brief-in-progress. Small and fully validated on decode,
// so every transition derives from a known shape.
type Context struct {
	NumImages    int `json:"numImages"`
	NumCarousels int `json:"numCarousels"`

	Images    []ImageBrief    `json:"images,omitempty"`
	Carousels []CarouselBrief `json:"carousels,omitempty"`

	CurrentImageIndex    int `json:"currentImageIndex"`
	CurrentCarouselIndex int `json:"currentCarouselIndex"`
}

func DecodeContext(raw datatypes.JSON) (Context, error) {
	var c Context
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Context{}, err
	}
	return c, nil
}

func EncodeContext(c Context) (datatypes.JSON, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
